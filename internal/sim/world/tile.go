package world

// TileType is one rendered layer of a tile.
type TileType struct {
	Number   uint16 `json:"n"`
	Rotation uint8  `json:"r,omitempty"`
}

const tileNumberMask = 0x3FFF

// Packed folds the rotation (0..3) into the top two bits so a layer fits in one uint16.
func (t TileType) Packed() uint16 {
	return t.Number&tileNumberMask | uint16(t.Rotation&3)<<14
}

func UnpackTileType(v uint16) TileType {
	return TileType{Number: v & tileNumberMask, Rotation: uint8(v >> 14)}
}

type Door struct {
	Open bool `json:"open"`
}

type Tile struct {
	Passable bool
	Layers   []TileType

	// Creature is the id of the occupying creature, 0 if none.
	Creature int64
	Ground   []int64
	Door     *Door
}

// PresentlyPassable reports whether a creature could step onto the tile right now.
func (t *Tile) PresentlyPassable() bool {
	if t == nil || !t.Passable || t.Creature != 0 {
		return false
	}
	return t.Door == nil || t.Door.Open
}

func (t *Tile) clone() Tile {
	c := *t
	c.Layers = append([]TileType(nil), t.Layers...)
	c.Ground = append([]int64(nil), t.Ground...)
	if t.Door != nil {
		d := *t.Door
		c.Door = &d
	}
	return c
}

func (t *Tile) removeGround(id int64) bool {
	for i, g := range t.Ground {
		if g == id {
			t.Ground = append(t.Ground[:i], t.Ground[i+1:]...)
			return true
		}
	}
	return false
}

package rules

import (
	"errors"
	"math/rand"

	"roguecloud.io/internal/sim/monster"
	"roguecloud.io/internal/sim/world"
)

// Monster behaviours a generator may request.
const (
	BehaviorWander = monster.BehaviorWander
	BehaviorGuard  = monster.BehaviorGuard
)

var ErrNoSpace = errors.New("no free tile")

// Spawn is a monster the generator placed, plus the behaviour that should drive it.
type Spawn struct {
	Creature *world.Creature
	Behavior string
	Area     world.Rect
}

// Generator builds the map of a round and populates it. One Generator serves exactly one round
// and is called only from the round goroutine.
type Generator interface {
	NewWorld(width, height int) (*world.World, error)
	NewPlayer(w *world.World, name string, userID int64) (*world.Creature, error)
	Monsters(w *world.World, n int) []Spawn
	Items(w *world.World, n int) int
	DefaultWeapon() int64
}

// Arena is a walled field with scattered rooms.
type Arena struct {
	rng           *rand.Rand
	rooms         []world.Rect
	defaultWeapon int64
}

func NewArena(seed int64) *Arena {
	return &Arena{rng: rand.New(rand.NewSource(seed))}
}

func (a *Arena) DefaultWeapon() int64 { return a.defaultWeapon }

func (a *Arena) NewWorld(width, height int) (*world.World, error) {
	if width < 10 || height < 10 {
		return nil, errors.New("arena: map too small")
	}
	w := world.New(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := world.Position{X: x, Y: y}
			edge := x == 0 || y == 0 || x == width-1 || y == height-1
			if edge {
				_ = w.SetTerrain(p, false, world.TileType{Number: TileWall}, world.TileType{Number: TileGrass})
				continue
			}
			_ = w.SetTerrain(p, true, world.TileType{Number: TileGrass})
		}
	}

	roomCount := (width * height) / 1500
	for i := 0; i < roomCount; i++ {
		rw := 6 + a.rng.Intn(8)
		rh := 5 + a.rng.Intn(6)
		if width-rw-4 <= 0 || height-rh-4 <= 0 {
			continue
		}
		r := world.Rect{X: 2 + a.rng.Intn(width-rw-4), Y: 2 + a.rng.Intn(height-rh-4), W: rw, H: rh}
		if a.overlaps(r) {
			continue
		}
		a.buildRoom(w, r)
		a.rooms = append(a.rooms, r)
	}

	fists := w.AddObject(&world.Object{Kind: world.ObjectWeapon, Name: "Fists", AttackDice: 1, AttackDiceSize: 3, HitRating: 12})
	a.defaultWeapon = fists.ID
	w.TakeChanged()
	return w, nil
}

func (a *Arena) overlaps(r world.Rect) bool {
	for _, o := range a.rooms {
		if r.X <= o.X+o.W+1 && o.X <= r.X+r.W+1 && r.Y <= o.Y+o.H+1 && o.Y <= r.Y+r.H+1 {
			return true
		}
	}
	return false
}

func (a *Arena) buildRoom(w *world.World, r world.Rect) {
	for y := r.Y; y < r.Y+r.H; y++ {
		for x := r.X; x < r.X+r.W; x++ {
			p := world.Position{X: x, Y: y}
			wall := x == r.X || y == r.Y || x == r.X+r.W-1 || y == r.Y+r.H-1
			if wall {
				_ = w.SetTerrain(p, false, world.TileType{Number: TileWall}, world.TileType{Number: TileFloor})
			} else {
				_ = w.SetTerrain(p, true, world.TileType{Number: TileFloor})
			}
		}
	}
	door := world.Position{X: r.X + 1 + a.rng.Intn(r.W-2), Y: r.Y + r.H - 1}
	_ = w.SetTerrain(door, true, world.TileType{Number: TileDoor, Rotation: 1}, world.TileType{Number: TileFloor})
	_ = w.SetDoor(door, false)
}

func (a *Arena) NewPlayer(w *world.World, name string, userID int64) (*world.Creature, error) {
	p, ok := w.FindFree(a.rng, w.Bounds(), 500)
	if !ok {
		return nil, ErrNoSpace
	}
	c := &world.Creature{
		Name:     name,
		Player:   true,
		UserID:   userID,
		TileType: TilePlayer,
		Pos:      p,
		HP:       60,
		MaxHP:    60,
		Level:    1,
		Weapon:   a.defaultWeapon,
	}
	if err := w.AddCreature(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Monsters spawns up to n monsters; guards are placed inside rooms when there are any.
func (a *Arena) Monsters(w *world.World, n int) []Spawn {
	var out []Spawn
	for i := 0; i < n; i++ {
		tpl := monsterTemplates[a.rng.Intn(len(monsterTemplates))]
		area := w.Bounds()
		if tpl.Behavior == BehaviorGuard && len(a.rooms) > 0 {
			room := a.rooms[a.rng.Intn(len(a.rooms))]
			area = world.Rect{X: room.X + 1, Y: room.Y + 1, W: room.W - 2, H: room.H - 2}
		}
		p, ok := w.FindFree(a.rng, area, 100)
		if !ok {
			continue
		}
		weapon := w.AddObject(cloneObject(tpl.Weapon))
		c := &world.Creature{
			Name:     tpl.Name,
			TileType: tpl.TileType,
			Pos:      p,
			HP:       tpl.HP,
			MaxHP:    tpl.HP,
			Level:    tpl.Level,
			Weapon:   weapon.ID,
		}
		if err := w.AddCreature(c); err != nil {
			continue
		}
		out = append(out, Spawn{Creature: c, Behavior: tpl.Behavior, Area: area})
	}
	return out
}

// Items scatters n random items and returns how many were placed.
func (a *Arena) Items(w *world.World, n int) int {
	placed := 0
	for i := 0; i < n; i++ {
		p, ok := w.FindFree(a.rng, w.Bounds(), 100)
		if !ok {
			continue
		}
		o := w.AddObject(cloneObject(itemTemplates[a.rng.Intn(len(itemTemplates))]))
		if _, err := w.PlaceObject(o.ID, p); err == nil {
			placed++
		}
	}
	return placed
}

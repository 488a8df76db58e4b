package world

type ObjectKind string

const (
	ObjectWeapon    ObjectKind = "WEAPON"
	ObjectArmour    ObjectKind = "ARMOUR"
	ObjectDrinkable ObjectKind = "DRINKABLE"
)

// Object is an item definition. Objects are immutable once added to the world.
type Object struct {
	ID       int64      `json:"id"`
	Kind     ObjectKind `json:"kind"`
	Name     string     `json:"name"`
	TileType uint16     `json:"tile_type"`

	// Weapons.
	AttackDice     int `json:"attack_dice,omitempty"`
	AttackDiceSize int `json:"attack_dice_size,omitempty"`
	AttackPlus     int `json:"attack_plus,omitempty"`
	HitRating      int `json:"hit_rating,omitempty"`

	// Armour.
	Slot    string `json:"slot,omitempty"`
	Defense int    `json:"defense,omitempty"`

	// Drinkables.
	Effect *Effect `json:"effect,omitempty"`
}

// GroundObject places an object on a tile.
type GroundObject struct {
	ID       int64    `json:"id"`
	ObjectID int64    `json:"object_id"`
	Pos      Position `json:"pos"`
}

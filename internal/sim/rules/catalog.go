package rules

import "roguecloud.io/internal/sim/world"

// Tile numbers understood by the reference clients.
const (
	TileGrass  uint16 = 1
	TileFloor  uint16 = 2
	TileWall   uint16 = 3
	TileDoor   uint16 = 4
	TileRoad   uint16 = 5
	TilePlayer uint16 = 100
	TileRat    uint16 = 101
	TileGoblin uint16 = 102
	TileTroll  uint16 = 103
	TileItem   uint16 = 200
)

type monsterTemplate struct {
	Name     string
	TileType uint16
	HP       int
	Level    int
	Weapon   world.Object
	Behavior string
}

var monsterTemplates = []monsterTemplate{
	{Name: "Rat", TileType: TileRat, HP: 8, Level: 1, Behavior: BehaviorWander,
		Weapon: world.Object{Kind: world.ObjectWeapon, Name: "Teeth", AttackDice: 1, AttackDiceSize: 3, HitRating: 10}},
	{Name: "Goblin", TileType: TileGoblin, HP: 20, Level: 3, Behavior: BehaviorWander,
		Weapon: world.Object{Kind: world.ObjectWeapon, Name: "Club", AttackDice: 2, AttackDiceSize: 4, HitRating: 14}},
	{Name: "Troll", TileType: TileTroll, HP: 45, Level: 6, Behavior: BehaviorGuard,
		Weapon: world.Object{Kind: world.ObjectWeapon, Name: "Maul", AttackDice: 3, AttackDiceSize: 6, AttackPlus: 2, HitRating: 18}},
}

var itemTemplates = []world.Object{
	{Kind: world.ObjectWeapon, Name: "Dagger", TileType: TileItem, AttackDice: 2, AttackDiceSize: 4, HitRating: 16},
	{Kind: world.ObjectWeapon, Name: "Sword", TileType: TileItem + 1, AttackDice: 3, AttackDiceSize: 5, AttackPlus: 1, HitRating: 20},
	{Kind: world.ObjectArmour, Name: "Helmet", TileType: TileItem + 2, Slot: "HEAD", Defense: 4},
	{Kind: world.ObjectArmour, Name: "Chain Mail", TileType: TileItem + 3, Slot: "CHEST", Defense: 8},
	{Kind: world.ObjectArmour, Name: "Boots", TileType: TileItem + 4, Slot: "FEET", Defense: 2},
	{Kind: world.ObjectDrinkable, Name: "Potion of Life", TileType: TileItem + 5,
		Effect: &world.Effect{Kind: world.EffectLife, Magnitude: 3, RemainingTurns: 10}},
	{Kind: world.ObjectDrinkable, Name: "Stoneskin Draught", TileType: TileItem + 6,
		Effect: &world.Effect{Kind: world.EffectDamageReduction, Magnitude: 30, RemainingTurns: 50}},
}

func cloneObject(o world.Object) *world.Object {
	c := o
	c.ID = 0
	if o.Effect != nil {
		e := *o.Effect
		c.Effect = &e
	}
	return &c
}

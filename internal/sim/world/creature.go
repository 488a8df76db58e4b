package world

type EffectKind string

const (
	EffectLife            EffectKind = "LIFE"
	EffectDamageReduction EffectKind = "DAMAGE_REDUCTION"
)

type Effect struct {
	Kind           EffectKind `json:"kind"`
	Magnitude      int        `json:"magnitude"`
	RemainingTurns int        `json:"remaining_turns"`
}

// Owned is an inventory slot: a per-owner id wrapping a shared object definition.
type Owned struct {
	ID       int64 `json:"id"`
	ObjectID int64 `json:"object_id"`
}

type Creature struct {
	ID       int64
	Name     string
	Player   bool
	UserID   int64
	TileType uint16

	Pos   Position
	HP    int
	MaxHP int
	Level int

	Weapon    int64
	Armour    []int64
	Inventory []Owned
	Effects   []Effect

	// DeathTick is the tick the current death was processed at; ReviveTick applies to players only.
	DeathTick  uint64
	ReviveTick uint64
	deathSeen  bool
}

func (c *Creature) Dead() bool { return c.HP <= 0 }

func (c *Creature) DeathProcessed() bool { return c.deathSeen }

func (c *Creature) MarkDeathProcessed(tick uint64) {
	c.deathSeen = true
	c.DeathTick = tick
}

func (c *Creature) Revive() {
	c.deathSeen = false
	c.DeathTick = 0
	c.ReviveTick = 0
	c.HP = c.MaxHP
}

func (c *Creature) InventoryItem(ownedID int64) (Owned, bool) {
	for _, it := range c.Inventory {
		if it.ID == ownedID {
			return it, true
		}
	}
	return Owned{}, false
}

func (c *Creature) RemoveInventory(ownedID int64) bool {
	for i, it := range c.Inventory {
		if it.ID == ownedID {
			c.Inventory = append(c.Inventory[:i], c.Inventory[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Creature) RemoveArmour(objectID int64) bool {
	for i, id := range c.Armour {
		if id == objectID {
			c.Armour = append(c.Armour[:i], c.Armour[i+1:]...)
			return true
		}
	}
	return false
}

// TickEffects applies per-turn effects and drops expired ones. It reports whether HP changed.
func (c *Creature) TickEffects() bool {
	changed := false
	kept := c.Effects[:0]
	for _, e := range c.Effects {
		if e.Kind == EffectLife && c.HP < c.MaxHP {
			c.HP += e.Magnitude
			if c.HP > c.MaxHP {
				c.HP = c.MaxHP
			}
			changed = true
		}
		e.RemainingTurns--
		if e.RemainingTurns > 0 {
			kept = append(kept, e)
		}
	}
	c.Effects = kept
	return changed
}

// View returns a copy that shares no slices with c.
func (c *Creature) View() CreatureView {
	return CreatureView{
		ID:        c.ID,
		Name:      c.Name,
		Player:    c.Player,
		TileType:  c.TileType,
		Pos:       c.Pos,
		HP:        c.HP,
		MaxHP:     c.MaxHP,
		Level:     c.Level,
		Weapon:    c.Weapon,
		Armour:    append([]int64(nil), c.Armour...),
		Inventory: append([]Owned(nil), c.Inventory...),
		Effects:   append([]Effect(nil), c.Effects...),
	}
}

// CreatureView is an immutable copy of a creature handed to readers outside the tick goroutine.
type CreatureView struct {
	ID       int64
	Name     string
	Player   bool
	TileType uint16

	Pos   Position
	HP    int
	MaxHP int
	Level int

	Weapon    int64
	Armour    []int64
	Inventory []Owned
	Effects   []Effect
}

func (v CreatureView) Dead() bool { return v.HP <= 0 }

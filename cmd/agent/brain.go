package main

import (
	"math/rand"

	"roguecloud.io/internal/protocol"
	"roguecloud.io/internal/sim/rules"
	"roguecloud.io/internal/sim/world"
	"roguecloud.io/internal/viewsync"
)

// brain picks one action per applied frame from the client's copy of the world.
type brain struct {
	rng *rand.Rand
}

func newBrain(seed int64) *brain {
	return &brain{rng: rand.New(rand.NewSource(seed))}
}

func posOf(p [2]int) world.Position { return world.Position{X: p[0], Y: p[1]} }

// decide prefers, in order: drinking when badly hurt, fighting an adjacent monster,
// picking up loot within reach, walking toward the nearest monster, wandering.
func (b *brain) decide(cw *viewsync.ClientWorld) world.Action {
	self := cw.Self
	if self == nil || self.Observer || self.Dead {
		return world.NullAction
	}
	me, ok := cw.Creature(self.CreatureID)
	if !ok {
		return world.NullAction
	}
	at := posOf(me.Pos)

	if self.MaxHP > 0 && self.HP*3 < self.MaxHP {
		for _, it := range self.Inventory {
			if def, ok := cw.Object(it.ObjectID); ok && def.Kind == string(world.ObjectDrinkable) {
				return world.Action{Kind: world.ActionDrink, ObjectID: it.ID}
			}
		}
	}

	var nearest *protocol.CreatureView
	best := 0
	for _, c := range cw.Creatures() {
		if c.Player || c.HP <= 0 {
			continue
		}
		d := world.Distance(at, posOf(c.Pos))
		if d == 1 {
			return world.Action{Kind: world.ActionAttack, TargetID: c.ID}
		}
		if nearest == nil || d < best {
			c := c
			nearest, best = &c, d
		}
	}

	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if g := cw.GroundAt(at.Add(dx, dy)); len(g) > 0 {
				return world.Action{Kind: world.ActionPickUp, ObjectID: g[0].ID}
			}
		}
	}

	if nearest != nil {
		if dest, ok := b.toward(cw, at, posOf(nearest.Pos)); ok {
			return world.Action{Kind: world.ActionStep, Dest: dest}
		}
	}
	if dest, ok := b.wander(cw, at); ok {
		return world.Action{Kind: world.ActionStep, Dest: dest}
	}
	return world.NullAction
}

func walkable(cw *viewsync.ClientWorld, p world.Position) bool {
	t, ok := cw.Tile(p)
	if !ok || !t.Known {
		return false
	}
	if t.Passable {
		return true
	}
	// Closed doors open when stepped into.
	for _, l := range t.Layers {
		if l.Number == rules.TileDoor {
			return true
		}
	}
	return false
}

func occupied(cw *viewsync.ClientWorld, p world.Position) bool {
	for _, c := range cw.Creatures() {
		if posOf(c.Pos) == p {
			return true
		}
	}
	return false
}

// toward picks the free neighbour that gets closest to target.
func (b *brain) toward(cw *viewsync.ClientWorld, from, target world.Position) (world.Position, bool) {
	cur := world.Distance(from, target)
	var best world.Position
	found := false
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			p := from.Add(dx, dy)
			if p == from || !walkable(cw, p) || occupied(cw, p) {
				continue
			}
			if d := world.Distance(p, target); d < cur {
				best, cur, found = p, d, true
			}
		}
	}
	return best, found
}

func (b *brain) wander(cw *viewsync.ClientWorld, from world.Position) (world.Position, bool) {
	order := b.rng.Perm(9)
	for _, i := range order {
		p := from.Add(i%3-1, i/3-1)
		if p != from && walkable(cw, p) && !occupied(cw, p) {
			return p, true
		}
	}
	return world.Position{}, false
}

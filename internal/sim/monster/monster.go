// Package monster holds the default decision functions for AI creatures.
//
// A Decider carries per-creature state between ticks. The scheduler never runs two decisions for the same creature
// at once, so a Decider needs no locking as long as each creature gets its own instance.
package monster

import (
	"math/rand"

	"roguecloud.io/internal/sim/world"
)

type Decider interface {
	Decide(self world.CreatureView, snap *world.Snapshot, events []world.Event) world.Action
}

const (
	BehaviorWander = "WANDER"
	BehaviorGuard  = "GUARD"
)

// New returns a fresh Decider for one creature.
func New(behavior string, area world.Rect, seed int64) Decider {
	rng := rand.New(rand.NewSource(seed))
	switch behavior {
	case BehaviorGuard:
		return &Guard{area: area, rng: rng}
	default:
		return &Wanderer{rng: rng, aggro: 6}
	}
}

var directions = [8]world.Position{
	{X: 0, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 0}, {X: 1, Y: 1},
	{X: 0, Y: 1}, {X: -1, Y: 1}, {X: -1, Y: 0}, {X: -1, Y: -1},
}

// stepToward picks the free neighbour closest to dst, or NULL if none gets closer.
func stepToward(self world.CreatureView, dst world.Position, snap *world.Snapshot, within *world.Rect) world.Action {
	best := self.Pos
	bestDist := world.Distance(self.Pos, dst)
	for _, d := range directions {
		p := self.Pos.Add(d.X, d.Y)
		if !snap.Free(p) || (within != nil && !within.Contains(p)) {
			continue
		}
		if dist := world.Distance(p, dst); dist < bestDist {
			best, bestDist = p, dist
		}
	}
	if best == self.Pos {
		return world.NullAction
	}
	return world.Action{Kind: world.ActionStep, Dest: best}
}

// nearestPlayer returns the closest live player within radius, ties broken by id.
func nearestPlayer(self world.CreatureView, snap *world.Snapshot, radius int) (world.CreatureView, bool) {
	box := world.Rect{X: self.Pos.X - radius, Y: self.Pos.Y - radius, W: 2*radius + 1, H: 2*radius + 1}
	var best world.CreatureView
	found := false
	for _, c := range snap.CreaturesIn(box, self.ID) {
		if !c.Player {
			continue
		}
		if !found || world.Distance(self.Pos, c.Pos) < world.Distance(self.Pos, best.Pos) {
			best, found = c, true
		}
	}
	return best, found
}

// attacker returns the id of the last creature that hit self in events.
func attacker(self world.CreatureView, events []world.Event) int64 {
	var id int64
	for _, e := range events {
		if e.Kind == world.EventCombat && e.TargetID == self.ID {
			id = e.CreatureID
		}
	}
	return id
}

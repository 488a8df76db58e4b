package monster

import (
	"math/rand"

	"roguecloud.io/internal/sim/world"
)

// Wanderer roams in straight runs and attacks any player that comes near or hits it.
type Wanderer struct {
	rng   *rand.Rand
	aggro int

	target  int64
	heading world.Position
	run     int
}

func (m *Wanderer) Decide(self world.CreatureView, snap *world.Snapshot, events []world.Event) world.Action {
	if self.Dead() {
		return world.NullAction
	}
	if id := attacker(self, events); id != 0 {
		m.target = id
	}
	if m.target != 0 {
		t, ok := snap.Creature(m.target)
		if !ok || t.Dead() || world.Distance(self.Pos, t.Pos) > 2*m.aggro {
			m.target = 0
		} else {
			return chase(self, t, snap)
		}
	}
	if p, ok := nearestPlayer(self, snap, m.aggro); ok {
		m.target = p.ID
		return chase(self, p, snap)
	}
	return m.wander(self, snap)
}

func chase(self, t world.CreatureView, snap *world.Snapshot) world.Action {
	if world.Adjacent(self.Pos, t.Pos) {
		return world.Action{Kind: world.ActionAttack, TargetID: t.ID}
	}
	return stepToward(self, t.Pos, snap, nil)
}

func (m *Wanderer) wander(self world.CreatureView, snap *world.Snapshot) world.Action {
	for tries := 0; tries < 4; tries++ {
		if m.run <= 0 {
			m.heading = directions[m.rng.Intn(len(directions))]
			m.run = 3 + m.rng.Intn(8)
		}
		next := self.Pos.Add(m.heading.X, m.heading.Y)
		if snap.Free(next) {
			m.run--
			return world.Action{Kind: world.ActionStep, Dest: next}
		}
		m.run = 0
	}
	return world.NullAction
}

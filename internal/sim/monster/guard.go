package monster

import (
	"math/rand"

	"roguecloud.io/internal/sim/world"
)

// Guard holds an area: it attacks players inside it and drifts back when pushed out.
type Guard struct {
	area world.Rect
	rng  *rand.Rand
}

func (g *Guard) Decide(self world.CreatureView, snap *world.Snapshot, events []world.Event) world.Action {
	if self.Dead() {
		return world.NullAction
	}
	if id := attacker(self, events); id != 0 {
		if t, ok := snap.Creature(id); ok && !t.Dead() && world.Adjacent(self.Pos, t.Pos) {
			return world.Action{Kind: world.ActionAttack, TargetID: id}
		}
	}
	for _, c := range snap.CreaturesIn(g.area, self.ID) {
		if !c.Player {
			continue
		}
		if world.Adjacent(self.Pos, c.Pos) {
			return world.Action{Kind: world.ActionAttack, TargetID: c.ID}
		}
		return stepToward(self, c.Pos, snap, &g.area)
	}
	if !g.area.Contains(self.Pos) {
		center := world.Position{X: g.area.X + g.area.W/2, Y: g.area.Y + g.area.H/2}
		return stepToward(self, center, snap, nil)
	}
	if g.rng.Intn(4) == 0 {
		d := directions[g.rng.Intn(len(directions))]
		if p := self.Pos.Add(d.X, d.Y); g.area.Contains(p) && snap.Free(p) {
			return world.Action{Kind: world.ActionStep, Dest: p}
		}
	}
	return world.NullAction
}

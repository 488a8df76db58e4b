package round

import (
	"time"

	"roguecloud.io/internal/sim/world"
)

// updateFollow returns the creature an observer watches this tick, switching to a new one
// after FollowSeconds or once the current target has been dead for the linger period.
func (e *Engine) updateFollow(s *Scope, c *Conn, tick uint64, now time.Time) int64 {
	f := &c.follow
	if f.watched == nil {
		f.watched = map[int64]struct{}{}
	}

	t := s.world.Creature(f.target)
	switch {
	case t == nil:
	case t.Dead():
		if f.deadTick == 0 {
			f.deadTick = tick
		}
		if tick < f.deadTick+uint64(e.cfg.LingerOnDeadTicks) {
			return f.target
		}
	case now.Sub(f.since) < time.Duration(e.cfg.FollowSeconds)*time.Second:
		return f.target
	}

	next := pickFollow(s, f.watched, f.target, tick)
	if next == 0 {
		f.watched = map[int64]struct{}{}
		next = pickFollow(s, f.watched, f.target, tick)
	}
	if next == 0 {
		next = f.target
		if s.world.Creature(next) == nil {
			next = 0
		}
	}
	if next != f.target {
		f.watched[next] = struct{}{}
	}
	f.target = next
	f.since = now
	f.deadTick = 0
	return next
}

// pickFollow prefers live players nobody here has watched recently, most active first,
// then falls back to monsters ranked the same way.
func pickFollow(s *Scope, watched map[int64]struct{}, current int64, tick uint64) int64 {
	var best *world.Creature
	bestScore := -1
	bestPlayer := false
	for _, cr := range s.world.Creatures() {
		if cr.Dead() || cr.ID == current {
			continue
		}
		if _, ok := watched[cr.ID]; ok {
			continue
		}
		score := s.activityCount(cr.ID, tick)
		switch {
		case best == nil,
			cr.Player && !bestPlayer,
			cr.Player == bestPlayer && score > bestScore:
			best, bestScore, bestPlayer = cr, score, cr.Player
		}
	}
	if best == nil {
		return 0
	}
	return best.ID
}

package round

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"roguecloud.io/internal/aisched"
	"roguecloud.io/internal/dispatch"
	"roguecloud.io/internal/sim/rules"
	"roguecloud.io/internal/sim/world"
	"roguecloud.io/internal/viewsync"
)

// Scope owns everything that lives for exactly one round.
type Scope struct {
	id    int64
	phase Phase
	start time.Time
	end   time.Time
	tick  uint64

	world    *world.World
	gen      rules.Generator
	resolver rules.Resolver
	sched    *aisched.Scheduler
	dispatch *dispatch.Dispatcher

	conns       map[string]*Conn
	nextOrdinal int64

	// Per user; players keep their creature and score across reconnects within the round.
	playerByUser map[int64]int64
	scores       map[int64]int64
	usernames    map[int64]string

	// Each monster owns its decision function; the scheduler never runs two for one monster at once.
	monsters map[int64]aisched.DecisionFunc

	// Ticks at which each creature performed a non-null action, for observer interest.
	activity map[int64][]uint64
}

// Conn is one client token's registration inside a round.
type Conn struct {
	token    string
	userID   int64
	username string
	observer bool
	ordinal  int64
	compress bool

	creatureID  int64
	transportID string
	out         chan Outbound
	closeFn     func(reason string, final []Outbound)
	// backlog holds messages that must not be dropped while out is full.
	backlog []Outbound

	view *viewsync.ConnState

	probeID          int64
	probeOutstanding bool
	probeSentAt      time.Time
	healthFailed     bool

	follow followState
}

type followState struct {
	target   int64
	since    time.Time
	deadTick uint64
	watched  map[int64]struct{}
}

func (c *Conn) connected() bool { return c.out != nil }

func (s *Scope) secsLeft(now time.Time) int {
	if s.end.IsZero() {
		return 0
	}
	left := s.end.Sub(now)
	if left < 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// sortedConns returns connections in ordinal order so per-tick work is deterministic.
func (s *Scope) sortedConns() []*Conn {
	out := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ordinal < out[j].ordinal })
	return out
}

func (s *Scope) recordActivity(creatureID int64, tick uint64) {
	const window = 20
	ticks := append(s.activity[creatureID], tick)
	i := 0
	for i < len(ticks) && ticks[i]+window <= tick {
		i++
	}
	s.activity[creatureID] = ticks[i:]
}

func (s *Scope) activityCount(creatureID int64, tick uint64) int {
	n := 0
	for _, t := range s.activity[creatureID] {
		if t+20 > tick {
			n++
		}
	}
	return n
}

func (s *Scope) scoreEntries() []ScoreEntry {
	out := make([]ScoreEntry, 0, len(s.scores))
	for uid, score := range s.scores {
		out = append(out, ScoreEntry{UserID: uid, Username: s.usernames[uid], Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// release drops the round's state. It runs on its own goroutine after the next round has started.
func (s *Scope) release(log *zap.Logger) {
	s.sched.Stop()
	for token := range s.conns {
		s.dispatch.Remove(token)
	}
	s.conns = nil
	s.monsters = nil
	s.world = nil
	log.Info("round released", zap.Int64("round", s.id))
}

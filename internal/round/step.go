package round

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"roguecloud.io/internal/protocol"
	"roguecloud.io/internal/sim/world"
	"roguecloud.io/internal/viewsync"
)

type stepStats struct {
	actions int
	intents int
	frames  int
}

// step advances an active round by one tick.
func (e *Engine) step(s *Scope, now time.Time) {
	start := time.Now()
	s.tick++
	tick := s.tick
	var st stepStats

	for _, c := range s.sortedConns() {
		st.actions += e.applyConnActions(s, c, tick)
	}
	st.intents = e.applyIntents(s, tick)
	e.resolveTimers(s, tick)

	changed := s.world.TakeChanged()
	secsLeft := s.secsLeft(now)
	for _, c := range s.sortedConns() {
		if c.connected() {
			flushBacklog(c)
		}
		e.probeHealth(s, c, tick, now)
		if e.sendFrame(s, c, tick, now, secsLeft, changed) {
			st.frames++
		}
	}

	e.submitAI(s, tick, secsLeft)

	stepMS := float64(time.Since(start).Microseconds()) / 1000
	e.publishMetrics(stepMS)
	if e.opts.Journal != nil {
		players, monsters := countCreatures(s)
		e.opts.Journal.WriteTick(TickEntry{
			RoundID:   s.id,
			Tick:      tick,
			Players:   players,
			Monsters:  monsters,
			Actions:   st.actions,
			Intents:   st.intents,
			Frames:    st.frames,
			StepMS:    stepMS,
			SecsLeft:  secsLeft,
			Connected: countConnected(s),
		})
	}
}

// applyConnActions attempts queued actions for one connection until one is performed.
// It returns the number of attempts made.
func (e *Engine) applyConnActions(s *Scope, c *Conn, tick uint64) (attempts int) {
	if c.observer || c.creatureID == 0 {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			e.recoveredPanics.Add(1)
			e.log.Error("connection action panicked", zap.Int64("round", s.id), zap.String("conn", c.token), zap.Uint64("tick", tick), zap.Any("panic", r))
		}
	}()

	for attempts < e.cfg.ActionAttemptsPerTick {
		p, ok := s.dispatch.PollNext(c.token)
		if !ok {
			return attempts
		}
		attempts++

		var out world.Outcome
		actor := s.world.Creature(c.creatureID)
		switch {
		case !p.Action.Kind.Valid():
			out = world.Failed(p.Action.Kind, world.FailInvalid)
		case actor == nil:
			out = world.Failed(p.Action.Kind, world.FailDead)
		default:
			out = s.resolver.Resolve(p.Action, actor, s.world, tick)
		}
		s.dispatch.Record(c.token, p.MessageID, out)
		e.send(c, protocol.ActionResultMsg{
			Type:            protocol.TypeActionResult,
			ProtocolVersion: protocol.Version,
			MessageID:       p.MessageID,
			Outcome:         protocol.FromOutcome(out),
		})
		if out.Performed {
			e.actionsApplied.Add(1)
			if p.Action.Kind != world.ActionNull {
				s.recordActivity(c.creatureID, tick)
			}
			return attempts
		}
	}
	return attempts
}

// applyIntents applies the decisions published since the previous tick.
func (e *Engine) applyIntents(s *Scope, tick uint64) int {
	intents := s.sched.TakeIntents()
	for _, in := range intents {
		e.applyIntent(s, in.CreatureID, in.Action, tick)
	}
	return len(intents)
}

func (e *Engine) applyIntent(s *Scope, id int64, a world.Action, tick uint64) {
	defer func() {
		if r := recover(); r != nil {
			e.recoveredPanics.Add(1)
			e.log.Error("monster intent panicked", zap.Int64("round", s.id), zap.Int64("creature", id), zap.Uint64("tick", tick), zap.Any("panic", r))
		}
	}()
	if _, ok := s.monsters[id]; !ok {
		return
	}
	c := s.world.Creature(id)
	if c == nil || c.Dead() || !a.Kind.Valid() {
		return
	}
	out := s.resolver.Resolve(a, c, s.world, tick)
	if out.Performed && a.Kind != world.ActionNull {
		s.recordActivity(id, tick)
	}
}

// resolveTimers runs effects, deaths, revives, scoring and monster upkeep.
func (e *Engine) resolveTimers(s *Scope, tick uint64) {
	w := s.world
	rng := rand.New(rand.NewSource(e.cfg.Seed ^ int64(tick) ^ s.id))

	for _, c := range w.Creatures() {
		e.resolveCreature(s, c, tick, rng)
	}

	for uid, id := range s.playerByUser {
		if c := w.Creature(id); c != nil && !c.Dead() && e.userConnected(s, uid) {
			s.scores[uid]++
		}
	}

	if tick%3 == 0 {
		live := 0
		for id := range s.monsters {
			if c := w.Creature(id); c != nil && !c.Dead() {
				live++
			}
		}
		if missing := e.cfg.MonsterTarget - live; missing > 0 {
			e.spawnMonsters(s, missing)
		}
	}

	if keep := uint64(e.cfg.EventRetentionTicks); tick > keep {
		w.Events().PruneBefore(tick - keep)
	}
}

func (e *Engine) resolveCreature(s *Scope, c *world.Creature, tick uint64, rng *rand.Rand) {
	defer func() {
		if r := recover(); r != nil {
			e.recoveredPanics.Add(1)
			e.log.Error("creature upkeep panicked", zap.Int64("round", s.id), zap.Int64("creature", c.ID), zap.Any("panic", r))
		}
	}()
	w := s.world
	if !c.Dead() {
		if c.TickEffects() {
			w.MarkChanged(c.Pos)
		}
		return
	}

	if !c.DeathProcessed() {
		c.MarkDeathProcessed(tick)
		if c.Player {
			e.playerDied(s, c, tick, rng)
		}
		return
	}

	if c.Player {
		if tick >= c.ReviveTick {
			c.Revive()
			w.MarkChanged(c.Pos)
		}
		return
	}
	if tick >= c.DeathTick+uint64(e.cfg.LingerOnDeadTicks) {
		w.RemoveCreature(c.ID)
		delete(s.monsters, c.ID)
		delete(s.activity, c.ID)
		s.sched.Forget(c.ID)
	}
}

// playerDied scatters half of the player's gear on its tile and schedules the revive.
func (e *Engine) playerDied(s *Scope, c *world.Creature, tick uint64, rng *rand.Rand) {
	w := s.world
	def := s.gen.DefaultWeapon()
	drop := func(objectID int64) {
		if _, err := w.PlaceObject(objectID, c.Pos); err != nil {
			e.log.Warn("drop on death failed", zap.Int64("creature", c.ID), zap.Int64("object", objectID), zap.Error(err))
		}
	}

	if c.Weapon != 0 && c.Weapon != def && rng.Intn(2) == 0 {
		drop(c.Weapon)
		c.Weapon = def
	}
	for _, id := range append([]int64(nil), c.Armour...) {
		if rng.Intn(2) == 0 {
			c.RemoveArmour(id)
			drop(id)
		}
	}
	for _, it := range append([]world.Owned(nil), c.Inventory...) {
		if rng.Intn(2) == 0 {
			c.RemoveInventory(it.ID)
			drop(it.ObjectID)
		}
	}
	c.Effects = nil
	c.MaxHP = c.MaxHP * e.cfg.DeathMaxHPPermille / 1000
	if c.MaxHP < 1 {
		c.MaxHP = 1
	}
	c.ReviveTick = tick + uint64(e.cfg.ReviveAfterTicks)
	w.MarkChanged(c.Pos)
}

func (e *Engine) userConnected(s *Scope, userID int64) bool {
	for _, c := range s.conns {
		if c.userID == userID && !c.observer && c.connected() {
			return true
		}
	}
	return false
}

// sendFrame encodes and queues the connection's view for this tick.
func (e *Engine) sendFrame(s *Scope, c *Conn, tick uint64, now time.Time, secsLeft int, changed []world.Position) (sent bool) {
	if !c.connected() {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			e.recoveredPanics.Add(1)
			c.view.RequestFull()
			e.log.Error("frame encoding panicked", zap.Int64("round", s.id), zap.String("conn", c.token), zap.Any("panic", r))
			sent = false
		}
	}()

	in := viewsync.Input{
		RoundID:       s.id,
		Tick:          tick,
		RoundSecsLeft: secsLeft,
		Changed:       changed,
		ViewW:         e.cfg.AgentViewWidth,
		ViewH:         e.cfg.AgentViewHeight,
	}
	if c.observer {
		in.ViewW, in.ViewH = e.cfg.ObserverViewWidth, e.cfg.ObserverViewHeight
		target := e.updateFollow(s, c, tick, now)
		in.Self = &protocol.SelfView{CreatureID: target, Observer: true}
		if t := s.world.Creature(target); t != nil {
			in.Follow = t.Pos
		} else {
			in.Follow = world.Position{X: s.world.Width() / 2, Y: s.world.Height() / 2}
		}
	} else {
		cr := s.world.Creature(c.creatureID)
		if cr == nil {
			return false
		}
		in.Follow = cr.Pos
		in.Self = selfView(cr, s.scores[c.userID])
		for _, it := range cr.Inventory {
			in.Refs = append(in.Refs, it.ObjectID)
		}
	}

	frame := viewsync.Encode(c.view, s.world, in)
	if !e.send(c, frame) {
		// The sequence number is spent; only a full frame lets the client move past it.
		c.view.RequestFull()
		return false
	}
	e.framesSent.Add(1)
	if frame.Full {
		e.fullFramesSent.Add(1)
	}
	return true
}

func selfView(c *world.Creature, score int64) *protocol.SelfView {
	v := &protocol.SelfView{
		CreatureID: c.ID,
		Score:      score,
		HP:         c.HP,
		MaxHP:      c.MaxHP,
		Dead:       c.Dead(),
		Weapon:     c.Weapon,
		Armour:     append([]int64(nil), c.Armour...),
	}
	for _, it := range c.Inventory {
		v.Inventory = append(v.Inventory, protocol.InventoryItem{ID: it.ID, ObjectID: it.ObjectID})
	}
	for _, eff := range c.Effects {
		v.Effects = append(v.Effects, protocol.FromEffect(eff))
	}
	return v
}

// submitAI hands every live monster to the scheduler with this tick's snapshot.
func (e *Engine) submitAI(s *Scope, tick uint64, secsLeft int) {
	if len(s.monsters) == 0 {
		return
	}
	snap := s.world.Snapshot(tick, secsLeft)
	events := s.world.Events().At(tick)
	for id, decide := range s.monsters {
		self, ok := snap.Creature(id)
		if !ok || self.Dead() {
			continue
		}
		s.sched.Submit(id, self, snap, events, decide)
	}
}

func countCreatures(s *Scope) (players, monsters int) {
	for _, c := range s.world.Creatures() {
		if c.Player {
			players++
		} else {
			monsters++
		}
	}
	return players, monsters
}

func countConnected(s *Scope) int {
	n := 0
	for _, c := range s.conns {
		if c.connected() {
			n++
		}
	}
	return n
}

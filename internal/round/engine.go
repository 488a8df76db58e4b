// Package round runs the fixed-rate tick loop and the round state machine.
package round

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"roguecloud.io/internal/aisched"
	"roguecloud.io/internal/dispatch"
	"roguecloud.io/internal/logging"
	"roguecloud.io/internal/protocol"
	"roguecloud.io/internal/sim/monster"
	"roguecloud.io/internal/sim/rules"
	"roguecloud.io/internal/sim/tuning"
	"roguecloud.io/internal/sim/world"
	"roguecloud.io/internal/viewsync"
)

var ErrStopped = errors.New("round engine stopped")

// DeciderFactory builds the decision function for one monster.
type DeciderFactory func(behavior string, area world.Rect, seed int64) aisched.DecisionFunc

type Options struct {
	Log     *zap.Logger
	Scores  ScoreSink
	Journal Journal

	// FirstRoundID lets a restarted server continue numbering after persisted rounds.
	FirstRoundID int64

	NewGenerator func(seed int64) rules.Generator
	NewResolver  func(seed int64) rules.Resolver
	NewDecider   DeciderFactory
}

type Engine struct {
	cfg  tuning.Tuning
	log  *zap.Logger
	opts Options

	attach chan AttachRequest
	detach chan detachReq
	acks   chan ackReq
	stop   chan struct{}

	// Round-goroutine state.
	scope       *Scope
	nextRoundID int64
	prevTokens  map[string]struct{}
	runCtx      context.Context

	metrics atomic.Value

	actionsApplied    atomic.Uint64
	framesSent        atomic.Uint64
	fullFramesSent    atomic.Uint64
	outboundDropped   atomic.Uint64
	healthProbesSent  atomic.Uint64
	healthCheckFailed atomic.Uint64
	recoveredPanics   atomic.Uint64
	roundsCompleted   atomic.Uint64
}

func New(cfg tuning.Tuning, opts Options) *Engine {
	opts.Log = logging.OrNop(opts.Log)
	if opts.NewGenerator == nil {
		opts.NewGenerator = func(seed int64) rules.Generator { return rules.NewArena(seed) }
	}
	if opts.NewResolver == nil {
		opts.NewResolver = func(seed int64) rules.Resolver { return rules.NewBasic(seed) }
	}
	if opts.NewDecider == nil {
		opts.NewDecider = func(behavior string, area world.Rect, seed int64) aisched.DecisionFunc {
			return monster.New(behavior, area, seed).Decide
		}
	}
	if opts.FirstRoundID <= 0 {
		opts.FirstRoundID = 1
	}
	e := &Engine{
		cfg:         cfg,
		log:         opts.Log,
		opts:        opts,
		attach:      make(chan AttachRequest, 64),
		detach:      make(chan detachReq, 256),
		acks:        make(chan ackReq, 1024),
		stop:        make(chan struct{}),
		nextRoundID: opts.FirstRoundID,
		prevTokens:  map[string]struct{}{},
	}
	e.metrics.Store(Metrics{Phase: PhaseWaiting})
	return e
}

func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	ticker := time.NewTicker(e.cfg.TickDuration())
	defer ticker.Stop()

	if e.scope == nil {
		e.scope = e.newScope()
	}
	defer func() {
		if e.scope != nil {
			e.scope.sched.Stop()
		}
	}()
	e.publishMetrics(0)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		case req := <-e.attach:
			e.handleAttach(req, time.Now())
		case d := <-e.detach:
			e.handleDetach(d)
		case a := <-e.acks:
			e.handleAck(a)
		case now := <-ticker.C:
			e.onTick(now)
		}
	}
}

func (e *Engine) Stop() { close(e.stop) }

// Attach hands a handshaken transport to the round goroutine and waits for the verdict.
func (e *Engine) Attach(ctx context.Context, req AttachRequest) (AttachResponse, error) {
	req.Resp = make(chan AttachResponse, 1)
	select {
	case e.attach <- req:
	case <-e.stop:
		return AttachResponse{}, ErrStopped
	case <-ctx.Done():
		return AttachResponse{}, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp, nil
	case <-e.stop:
		return AttachResponse{}, ErrStopped
	case <-ctx.Done():
		return AttachResponse{}, ctx.Err()
	}
}

// Detach reports that a transport is gone. The connection and its creature stay in the round.
func (e *Engine) Detach(token, transportID string) {
	select {
	case e.detach <- detachReq{token: token, transportID: transportID}:
	case <-e.stop:
	}
}

// HealthAck records a probe reply; dropped when the engine is backed up.
func (e *Engine) HealthAck(token, transportID string, id int64) {
	select {
	case e.acks <- ackReq{token: token, transportID: transportID, id: id}:
	default:
	}
}

func (e *Engine) Metrics() Metrics {
	v := e.metrics.Load()
	m, _ := v.(Metrics)
	return m
}

func (e *Engine) newScope() *Scope {
	id := e.nextRoundID
	e.nextRoundID++
	seed := e.cfg.Seed + id*7919

	s := &Scope{
		id:           id,
		phase:        PhaseWaiting,
		gen:          e.opts.NewGenerator(seed),
		resolver:     e.opts.NewResolver(seed + 1),
		sched:        aisched.New(aisched.Workers(e.cfg.AIWorkersPerCPU), 4096, e.log.With(zap.Int64("round", id))),
		dispatch:     dispatch.New(e.cfg.ActionQueueCap, e.cfg.DedupWindow),
		conns:        map[string]*Conn{},
		playerByUser: map[int64]int64{},
		scores:       map[int64]int64{},
		usernames:    map[int64]string{},
		monsters:     map[int64]aisched.DecisionFunc{},
		activity:     map[int64][]uint64{},
	}
	w, err := s.gen.NewWorld(e.cfg.WorldWidth, e.cfg.WorldHeight)
	if err != nil {
		e.log.Error("world generation failed", zap.Int64("round", id), zap.Error(err))
		w = world.New(e.cfg.WorldWidth, e.cfg.WorldHeight)
	}
	s.world = w
	e.spawnMonsters(s, e.cfg.MonsterTarget)

	ctx := e.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	s.sched.Start(ctx)
	e.log.Info("round created", zap.Int64("round", id), zap.Int("width", w.Width()), zap.Int("height", w.Height()))
	return s
}

func (e *Engine) spawnMonsters(s *Scope, n int) {
	if n <= 0 {
		return
	}
	for _, sp := range s.gen.Monsters(s.world, n) {
		id := sp.Creature.ID
		s.monsters[id] = e.opts.NewDecider(sp.Behavior, sp.Area, e.cfg.Seed^id)
	}
}

func (e *Engine) beginRound(s *Scope, now time.Time) {
	s.phase = PhaseActive
	s.start = now
	s.end = now.Add(e.cfg.RoundDuration())
	e.log.Info("round started", zap.Int64("round", s.id), zap.Time("ends", s.end))
}

func (e *Engine) handleAttach(req AttachRequest, now time.Time) {
	resp := e.attachLocked(req, now)
	if req.Resp != nil {
		req.Resp <- resp
	}
}

func (e *Engine) attachLocked(req AttachRequest, now time.Time) AttachResponse {
	s := e.scope
	hs := req.Handshake
	if hs.ClientToken == "" || req.Out == nil {
		return AttachResponse{Result: protocol.ResultBadRequest, RoundID: s.id, Message: "missing client token"}
	}
	_, fromPrevious := e.prevTokens[hs.ClientToken]

	switch s.phase {
	case PhaseOver:
		if hs.IsResumption && (fromPrevious || s.conns[hs.ClientToken] != nil) {
			return AttachResponse{Result: protocol.ResultRoundOver, RoundID: s.id}
		}
		return AttachResponse{Result: protocol.ResultRoundNotStarted, RoundID: s.id}
	}
	if hs.IsResumption && fromPrevious && s.conns[hs.ClientToken] == nil {
		return AttachResponse{Result: protocol.ResultRoundOver, RoundID: s.id}
	}

	c := s.conns[hs.ClientToken]
	if c == nil {
		c = &Conn{
			token:    hs.ClientToken,
			userID:   req.UserID,
			username: req.Username,
			observer: hs.Observer,
			ordinal:  s.nextOrdinal,
			view:     viewsync.NewConnState(),
		}
		s.nextOrdinal++
		if !c.observer {
			id, err := e.playerCreature(s, req.UserID, req.Username)
			if err != nil {
				e.log.Warn("no room for player", zap.Int64("round", s.id), zap.String("user", req.Username), zap.Error(err))
				return AttachResponse{Result: protocol.ResultRoundNotStarted, RoundID: s.id, Message: err.Error()}
			}
			c.creatureID = id
		}
		s.conns[c.token] = c
	} else if !hs.IsResumption {
		// The client lost its local state and restarted its message numbering.
		s.dispatch.Reset(c.token)
	}

	if c.closeFn != nil {
		c.closeFn(protocol.CloseSuperseded, nil)
	}
	if s.phase == PhaseWaiting {
		e.beginRound(s, now)
	}
	c.transportID = uuid.NewString()
	c.backlog = nil
	c.out = req.Out
	c.closeFn = req.Close
	c.compress = hs.Compression == protocol.CompressionZstd
	c.probeOutstanding = false
	c.view.RequestFull()

	e.send(c, protocol.HandshakeAckMsg{
		Type:            protocol.TypeHandshakeAck,
		ProtocolVersion: protocol.Version,
		Result:          protocol.ResultSuccess,
		RoundID:         s.id,
		TransportID:     c.transportID,
	})
	if hs.IsResumption {
		for _, r := range s.dispatch.ResultsAfter(c.token, hs.LastAckedMessageID) {
			e.send(c, protocol.ActionResultMsg{
				Type:            protocol.TypeActionResult,
				ProtocolVersion: protocol.Version,
				MessageID:       r.MessageID,
				Outcome:         protocol.FromOutcome(r.Outcome),
			})
		}
	}

	e.log.Info("connection attached",
		zap.Int64("round", s.id),
		zap.String("conn", c.token),
		zap.String("transport", c.transportID),
		zap.Bool("resumption", hs.IsResumption),
		zap.Bool("observer", c.observer),
	)
	return AttachResponse{
		Result:      protocol.ResultSuccess,
		RoundID:     s.id,
		TransportID: c.transportID,
		Conn: &Handle{
			Token:       c.token,
			TransportID: c.transportID,
			RoundID:     s.id,
			CreatureID:  c.creatureID,
			Observer:    c.observer,
			dispatcher:  s.dispatch,
		},
	}
}

func (e *Engine) playerCreature(s *Scope, userID int64, username string) (int64, error) {
	if id, ok := s.playerByUser[userID]; ok && s.world.Creature(id) != nil {
		return id, nil
	}
	c, err := s.gen.NewPlayer(s.world, username, userID)
	if err != nil {
		return 0, err
	}
	s.playerByUser[userID] = c.ID
	s.usernames[userID] = username
	if _, ok := s.scores[userID]; !ok {
		s.scores[userID] = 0
	}
	s.gen.Items(s.world, e.cfg.ItemsPerPlayer)
	return c.ID, nil
}

func (e *Engine) handleDetach(d detachReq) {
	c := e.scope.conns[d.token]
	if c == nil || c.transportID != d.transportID {
		return
	}
	c.out = nil
	c.closeFn = nil
	c.backlog = nil
	c.probeOutstanding = false
	e.log.Debug("connection detached", zap.Int64("round", e.scope.id), zap.String("conn", d.token), zap.String("transport", d.transportID))
}

func (e *Engine) handleAck(a ackReq) {
	c := e.scope.conns[a.token]
	if c == nil || c.transportID != a.transportID || !c.probeOutstanding || c.probeID != a.id {
		return
	}
	c.probeOutstanding = false
	c.healthFailed = false
}

func (e *Engine) onTick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			e.recoveredPanics.Add(1)
			e.log.Error("tick panicked", zap.Int64("round", e.scope.id), zap.Uint64("tick", e.scope.tick), zap.Any("panic", r))
		}
	}()

	s := e.scope
	switch s.phase {
	case PhaseActive:
		if s.end.IsZero() {
			e.log.Error("active round has no end deadline", zap.Int64("round", s.id))
			e.endRound(s, now)
			break
		}
		if !now.Before(s.end) {
			e.endRound(s, now)
			break
		}
		e.step(s, now)
		return
	case PhaseOver:
		if !now.Before(s.end.Add(e.cfg.BetweenRounds())) {
			old := s
			e.scope = e.newScope()
			go old.release(e.log)
		}
	}
	e.publishMetrics(0)
}

func (e *Engine) endRound(s *Scope, now time.Time) {
	s.phase = PhaseOver
	if s.end.IsZero() || s.end.After(now) {
		s.end = now
	}
	next := int((e.cfg.BetweenRounds() - now.Sub(s.end) + time.Second - 1) / time.Second)
	if next < 1 {
		next = 1
	}

	e.prevTokens = make(map[string]struct{}, len(s.conns))
	for _, c := range s.sortedConns() {
		e.prevTokens[c.token] = struct{}{}
		if !c.connected() {
			continue
		}
		e.send(c, protocol.RoundCompleteMsg{
			Type:               protocol.TypeRoundComplete,
			ProtocolVersion:    protocol.Version,
			RoundID:            s.id,
			NextRoundInSeconds: next,
		})
		e.closeConn(c, protocol.CloseRoundOver)
	}

	scores := s.scoreEntries()
	if e.opts.Journal != nil {
		e.opts.Journal.WriteRound(RoundEntry{RoundID: s.id, Start: s.start, End: s.end, Ticks: s.tick, Scores: scores})
	}
	if e.opts.Scores != nil && len(scores) > 0 {
		go e.saveScores(s.id, scores)
	}
	e.roundsCompleted.Add(1)
	e.log.Info("round over", zap.Int64("round", s.id), zap.Uint64("ticks", s.tick), zap.Int("players", len(scores)), zap.Int("next_round_in_s", next))
}

func (e *Engine) saveScores(roundID int64, scores []ScoreEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.opts.Scores.SaveScores(ctx, roundID, scores); err != nil {
		e.log.Error("saving scores failed", zap.Int64("round", roundID), zap.Error(err))
	}
}

// maxBacklog bounds the control messages waiting behind a full outbound queue.
const maxBacklog = 4096

// send encodes msg for c and queues it without blocking. View frames are dropped when the queue
// is full and the next frame is forced full. Every other message is kept in order in the
// connection's backlog; a transport that falls maxBacklog messages behind is closed.
// It reports whether msg was queued.
func (e *Engine) send(c *Conn, msg any) bool {
	if c.out == nil {
		return false
	}
	data, binary, err := protocol.Marshal(msg, c.compress)
	if err != nil {
		e.log.Error("encode message", zap.String("conn", c.token), zap.Error(err))
		return false
	}
	ob := Outbound{Data: data, Binary: binary}

	if _, frame := msg.(protocol.ViewFrameMsg); frame {
		if !flushBacklog(c) || !trySend(c.out, ob) {
			e.outboundDropped.Add(1)
			c.view.RequestFull()
			return false
		}
		return true
	}

	c.backlog = append(c.backlog, ob)
	flushBacklog(c)
	if len(c.backlog) > maxBacklog {
		e.log.Warn("outbound backlog overflow",
			zap.Int64("round", e.scope.id),
			zap.String("conn", c.token),
			zap.String("transport", c.transportID),
			zap.Int("backlog", len(c.backlog)),
		)
		e.outboundDropped.Add(uint64(len(c.backlog)))
		c.backlog = nil
		e.closeConn(c, protocol.CloseSlowConsumer)
		return false
	}
	return true
}

// closeConn hands the remaining backlog to the transport, asks it to close and forgets it.
func (e *Engine) closeConn(c *Conn, reason string) {
	if c.closeFn != nil {
		c.closeFn(reason, c.backlog)
	}
	c.out = nil
	c.closeFn = nil
	c.backlog = nil
}

// flushBacklog moves backlog entries into the outbound queue while there is room.
// It reports whether the backlog is now empty.
func flushBacklog(c *Conn) bool {
	n := 0
	for n < len(c.backlog) && trySend(c.out, c.backlog[n]) {
		n++
	}
	if n == len(c.backlog) {
		c.backlog = nil
		return true
	}
	c.backlog = append(c.backlog[:0], c.backlog[n:]...)
	return false
}

func trySend(ch chan Outbound, ob Outbound) bool {
	select {
	case ch <- ob:
		return true
	default:
		return false
	}
}

package round

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"roguecloud.io/internal/aisched"
	"roguecloud.io/internal/protocol"
	"roguecloud.io/internal/sim/rules"
	"roguecloud.io/internal/sim/tuning"
	"roguecloud.io/internal/sim/world"
)

func testTuning() tuning.Tuning {
	cfg := tuning.Defaults()
	cfg.TickMs = 10
	cfg.WorldWidth = 40
	cfg.WorldHeight = 30
	cfg.MonsterTarget = 2
	cfg.ItemsPerPlayer = 2
	cfg.AgentViewWidth = 20
	cfg.AgentViewHeight = 10
	cfg.ObserverViewWidth = 16
	cfg.ObserverViewHeight = 16
	cfg.AIWorkersPerCPU = 1
	return cfg
}

func startEngine(t *testing.T, cfg tuning.Tuning, opts Options) *Engine {
	t.Helper()
	e := New(cfg, opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Errorf("engine did not stop")
		}
	})
	return e
}

type testTransport struct {
	out    chan Outbound
	once   sync.Once
	closed chan string

	mu   sync.Mutex
	tail []Outbound
}

func newTransport(capacity int) *testTransport {
	return &testTransport{out: make(chan Outbound, capacity), closed: make(chan string, 1)}
}

func (tr *testTransport) close(reason string, final []Outbound) {
	tr.once.Do(func() {
		tr.mu.Lock()
		tr.tail = append(tr.tail, final...)
		tr.mu.Unlock()
		tr.closed <- reason
	})
}

// written returns what the transport would put on the wire: the queue, then the final messages.
func (tr *testTransport) written() []Outbound {
	var out []Outbound
	for {
		select {
		case ob := <-tr.out:
			out = append(out, ob)
			continue
		default:
		}
		break
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append(out, tr.tail...)
}

func typeOf(t *testing.T, ob Outbound) string {
	t.Helper()
	b, err := protocol.Payload(ob.Data, ob.Binary)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode base: %v", err)
	}
	return base.Type
}

func attach(t *testing.T, e *Engine, tr *testTransport, hs protocol.HandshakeMsg, userID int64) AttachResponse {
	t.Helper()
	hs.Type = protocol.TypeHandshake
	hs.ProtocolVersion = protocol.Version
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := e.Attach(ctx, AttachRequest{
		Handshake: hs,
		UserID:    userID,
		Username:  hs.Username,
		Out:       tr.out,
		Close:     tr.close,
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	return resp
}

type received struct {
	typ string
	raw Outbound
}

func (r received) decode(t *testing.T, v any) {
	t.Helper()
	if err := protocol.Unmarshal(r.raw.Data, r.raw.Binary, v); err != nil {
		t.Fatalf("decode %s: %v", r.typ, err)
	}
}

func next(t *testing.T, ch chan Outbound, timeout time.Duration) received {
	t.Helper()
	select {
	case ob := <-ch:
		return received{typ: typeOf(t, ob), raw: ob}
	case <-time.After(timeout):
		t.Fatalf("no message within %s", timeout)
	}
	return received{}
}

// waitFor reads until a message of type typ satisfies match.
func waitFor(t *testing.T, ch chan Outbound, typ string, match func(received) bool) received {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		r := next(t, ch, time.Until(deadline))
		if r.typ == typ && (match == nil || match(r)) {
			return r
		}
	}
	t.Fatalf("no %s message matched", typ)
	return received{}
}

func waitMetrics(t *testing.T, e *Engine, ok func(Metrics) bool) Metrics {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if m := e.Metrics(); ok(m) {
			return m
		}
		time.Sleep(5 * time.Millisecond)
	}
	m := e.Metrics()
	t.Fatalf("metrics condition not reached: %+v", m)
	return m
}

func TestEngine_FirstConnectionStartsRound(t *testing.T) {
	e := startEngine(t, testTuning(), Options{})
	if m := e.Metrics(); m.Phase != PhaseWaiting {
		t.Fatalf("phase before first connection = %s", m.Phase)
	}
	time.Sleep(50 * time.Millisecond)
	if m := e.Metrics(); m.Tick != 0 {
		t.Fatalf("ticks advanced before first connection: %d", m.Tick)
	}

	tr := newTransport(1024)
	resp := attach(t, e, tr, protocol.HandshakeMsg{ClientToken: "tok-a", Username: "alice"}, 1)
	if resp.Result != protocol.ResultSuccess || resp.Conn == nil || resp.Conn.CreatureID == 0 {
		t.Fatalf("attach response: %+v", resp)
	}
	r := next(t, tr.out, time.Second)
	if r.typ != protocol.TypeHandshakeAck {
		t.Fatalf("first message = %s, want %s", r.typ, protocol.TypeHandshakeAck)
	}
	var ack protocol.HandshakeAckMsg
	r.decode(t, &ack)
	if ack.TransportID != resp.TransportID || ack.RoundID != resp.RoundID {
		t.Fatalf("ack %+v does not match response %+v", ack, resp)
	}

	f := waitFor(t, tr.out, protocol.TypeViewFrame, nil)
	var frame protocol.ViewFrameMsg
	f.decode(t, &frame)
	if !frame.Full || frame.Seq != 0 {
		t.Fatalf("first frame full=%v seq=%d", frame.Full, frame.Seq)
	}
	if frame.Self == nil || frame.Self.CreatureID != resp.Conn.CreatureID {
		t.Fatalf("frame self = %+v", frame.Self)
	}
	waitMetrics(t, e, func(m Metrics) bool { return m.Phase == PhaseActive && m.Tick > 0 && m.Players == 1 })
}

func TestEngine_TickAdvancesWhileDecisionBlocks(t *testing.T) {
	release := make(chan struct{})
	var calls sync.WaitGroup
	calls.Add(1)
	var first sync.Once
	opts := Options{
		NewDecider: func(string, world.Rect, int64) aisched.DecisionFunc {
			return func(world.CreatureView, *world.Snapshot, []world.Event) world.Action {
				first.Do(calls.Done)
				<-release
				return world.NullAction
			}
		},
	}
	e := startEngine(t, testTuning(), opts)
	t.Cleanup(func() { close(release) })

	attach(t, e, newTransport(4096), protocol.HandshakeMsg{ClientToken: "tok-a", Username: "alice"}, 1)
	calls.Wait()

	start := e.Metrics().Tick
	m := waitMetrics(t, e, func(m Metrics) bool { return m.Tick >= start+20 })
	if m.AI.InFlight == 0 {
		t.Fatalf("expected blocked decisions in flight: %+v", m.AI)
	}
	if m.AI.BusyDropTotal == 0 {
		t.Fatalf("expected resubmissions of busy monsters to be dropped: %+v", m.AI)
	}
}

func TestEngine_RoundCompleteReachesEveryConnection(t *testing.T) {
	cfg := testTuning()
	cfg.RoundSeconds = 1
	cfg.BetweenRoundsSeconds = 30
	e := startEngine(t, cfg, Options{})

	a, b := newTransport(8192), newTransport(8192)
	attach(t, e, a, protocol.HandshakeMsg{ClientToken: "tok-a", Username: "alice"}, 1)
	attach(t, e, b, protocol.HandshakeMsg{ClientToken: "tok-b", Username: "bob"}, 2)

	for name, tr := range map[string]*testTransport{"a": a, "b": b} {
		select {
		case reason := <-tr.closed:
			if reason != protocol.CloseRoundOver {
				t.Fatalf("%s closed with %q", name, reason)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("%s was not closed at round end", name)
		}

		var complete *protocol.RoundCompleteMsg
		for _, ob := range tr.written() {
			r := received{typ: typeOf(t, ob), raw: ob}
			switch r.typ {
			case protocol.TypeRoundComplete:
				complete = &protocol.RoundCompleteMsg{}
				r.decode(t, complete)
			case protocol.TypeViewFrame:
				if complete != nil {
					t.Fatalf("%s received a frame after ROUND_COMPLETE", name)
				}
			}
		}
		if complete == nil {
			t.Fatalf("%s never received ROUND_COMPLETE", name)
		}
		if complete.NextRoundInSeconds <= 0 {
			t.Fatalf("%s next round in %d seconds", name, complete.NextRoundInSeconds)
		}
	}

	m := waitMetrics(t, e, func(m Metrics) bool { return m.Phase == PhaseOver })
	if m.RoundsCompleted != 1 {
		t.Fatalf("rounds completed = %d", m.RoundsCompleted)
	}

	resumed := attach(t, e, newTransport(16), protocol.HandshakeMsg{ClientToken: "tok-a", IsResumption: true}, 1)
	if resumed.Result != protocol.ResultRoundOver {
		t.Fatalf("resumption during OVER = %s", resumed.Result)
	}
	fresh := attach(t, e, newTransport(16), protocol.HandshakeMsg{ClientToken: "tok-c"}, 3)
	if fresh.Result != protocol.ResultRoundNotStarted {
		t.Fatalf("new connection during OVER = %s", fresh.Result)
	}
}

func TestEngine_ResumeResendsResultsAndForcesFullFrame(t *testing.T) {
	e := startEngine(t, testTuning(), Options{})

	first := newTransport(4096)
	resp := attach(t, e, first, protocol.HandshakeMsg{ClientToken: "tok-a", Username: "alice"}, 1)
	for id := int64(1); id <= 3; id++ {
		resp.Conn.Offer(id, world.NullAction)
	}
	for id := int64(1); id <= 3; id++ {
		want := id
		waitFor(t, first.out, protocol.TypeActionResult, func(r received) bool {
			var msg protocol.ActionResultMsg
			r.decode(t, &msg)
			return msg.MessageID == want && msg.Outcome.Performed
		})
	}

	second := newTransport(4096)
	again := attach(t, e, second, protocol.HandshakeMsg{ClientToken: "tok-a", IsResumption: true, LastAckedMessageID: 1}, 1)
	if again.Result != protocol.ResultSuccess || again.TransportID == resp.TransportID {
		t.Fatalf("resume response: %+v", again)
	}
	select {
	case reason := <-first.closed:
		if reason != protocol.CloseSuperseded {
			t.Fatalf("old transport closed with %q", reason)
		}
	case <-time.After(time.Second):
		t.Fatalf("old transport was not closed")
	}
	if again.Conn.CreatureID != resp.Conn.CreatureID {
		t.Fatalf("resumed creature %d, want %d", again.Conn.CreatureID, resp.Conn.CreatureID)
	}

	if r := next(t, second.out, time.Second); r.typ != protocol.TypeHandshakeAck {
		t.Fatalf("first message after resume = %s", r.typ)
	}
	var resent []int64
	for len(resent) < 2 {
		r := next(t, second.out, time.Second)
		if r.typ != protocol.TypeActionResult {
			t.Fatalf("expected resent results before %s", r.typ)
		}
		var msg protocol.ActionResultMsg
		r.decode(t, &msg)
		resent = append(resent, msg.MessageID)
	}
	if resent[0] != 2 || resent[1] != 3 {
		t.Fatalf("resent ids = %v, want [2 3]", resent)
	}
	f := waitFor(t, second.out, protocol.TypeViewFrame, nil)
	var frame protocol.ViewFrameMsg
	f.decode(t, &frame)
	if !frame.Full {
		t.Fatalf("first frame after resume is not full")
	}

	// A retransmitted action is not applied twice.
	before := e.Metrics().ActionsApplied
	again.Conn.Offer(3, world.NullAction)
	m := waitMetrics(t, e, func(m Metrics) bool { return m.ActionsDuplicate >= 1 })
	if m.ActionsApplied != before {
		t.Fatalf("duplicate applied: %d -> %d", before, m.ActionsApplied)
	}
}

func TestEngine_ObserverFollowsPlayer(t *testing.T) {
	cfg := testTuning()
	e := startEngine(t, cfg, Options{})

	player := attach(t, e, newTransport(4096), protocol.HandshakeMsg{ClientToken: "tok-a", Username: "alice"}, 1)
	obs := newTransport(4096)
	resp := attach(t, e, obs, protocol.HandshakeMsg{ClientToken: "tok-o", Username: "watcher", Observer: true}, 9)
	if resp.Result != protocol.ResultSuccess || resp.Conn.CreatureID != 0 || !resp.Conn.Observer {
		t.Fatalf("observer attach: %+v", resp)
	}
	if resp.Conn.Offer(1, world.NullAction) {
		t.Fatalf("observer handle accepted an action")
	}

	f := waitFor(t, obs.out, protocol.TypeViewFrame, nil)
	var frame protocol.ViewFrameMsg
	f.decode(t, &frame)
	if frame.Self == nil || !frame.Self.Observer {
		t.Fatalf("observer frame self = %+v", frame.Self)
	}
	if frame.Self.CreatureID != player.Conn.CreatureID {
		t.Fatalf("observer follows %d, want player %d", frame.Self.CreatureID, player.Conn.CreatureID)
	}
	if frame.Viewport.W > cfg.ObserverViewWidth || frame.Viewport.H > cfg.ObserverViewHeight {
		t.Fatalf("observer viewport %+v too large", frame.Viewport)
	}
	m := waitMetrics(t, e, func(m Metrics) bool { return m.Observers == 1 })
	if m.Players != 1 {
		t.Fatalf("observer spawned a creature: players=%d", m.Players)
	}
}

func TestEngine_HealthProbe(t *testing.T) {
	cfg := testTuning()
	cfg.HealthProbeEveryTicks = 5
	cfg.HealthProbeWindowSeconds = 1
	e := startEngine(t, cfg, Options{})

	tr := newTransport(8192)
	resp := attach(t, e, tr, protocol.HandshakeMsg{ClientToken: "tok-a", Username: "alice"}, 1)
	r := waitFor(t, tr.out, protocol.TypeHealthProbe, nil)
	var probe protocol.HealthProbeMsg
	r.decode(t, &probe)
	e.HealthAck(resp.Conn.Token, resp.TransportID, probe.ID)

	waitFor(t, tr.out, protocol.TypeHealthProbe, func(r received) bool {
		var p protocol.HealthProbeMsg
		r.decode(t, &p)
		return p.ID > probe.ID
	})
	if m := e.Metrics(); m.HealthCheckFailed != 0 {
		t.Fatalf("acked probe counted as failed: %+v", m)
	}

	// Stop answering: the outstanding probe fails after the window.
	waitMetrics(t, e, func(m Metrics) bool { return m.HealthCheckFailed >= 1 })
}

// idleEngine builds an engine with a fresh round but no loop; tests drive attachLocked and send directly.
func idleEngine(t *testing.T, opts Options) (*Engine, *Scope) {
	t.Helper()
	e := New(testTuning(), opts)
	e.scope = e.newScope()
	t.Cleanup(e.scope.sched.Stop)
	return e, e.scope
}

func attachRequest(tr *testTransport, hs protocol.HandshakeMsg, userID int64) AttachRequest {
	hs.Type = protocol.TypeHandshake
	hs.ProtocolVersion = protocol.Version
	return AttachRequest{Handshake: hs, UserID: userID, Username: hs.Username, Out: tr.out, Close: tr.close}
}

type crowdedArena struct{ *rules.Arena }

func (crowdedArena) NewPlayer(*world.World, string, int64) (*world.Creature, error) {
	return nil, errors.New("no free floor")
}

func TestEngine_RefusedAttachLeavesRoundWaiting(t *testing.T) {
	t.Run("stale resumption", func(t *testing.T) {
		e, s := idleEngine(t, Options{})
		e.prevTokens["stale"] = struct{}{}

		resp := e.attachLocked(attachRequest(newTransport(4), protocol.HandshakeMsg{ClientToken: "stale", IsResumption: true}, 1), time.Now())
		if resp.Result != protocol.ResultRoundOver {
			t.Fatalf("result = %s, want %s", resp.Result, protocol.ResultRoundOver)
		}
		if s.phase != PhaseWaiting || !s.start.IsZero() || !s.end.IsZero() {
			t.Fatalf("refused attach started the round: phase=%s start=%v", s.phase, s.start)
		}
		if len(s.conns) != 0 {
			t.Fatalf("refused attach registered %d connections", len(s.conns))
		}
	})

	t.Run("no room for player", func(t *testing.T) {
		e, s := idleEngine(t, Options{
			NewGenerator: func(seed int64) rules.Generator { return crowdedArena{rules.NewArena(seed)} },
		})

		resp := e.attachLocked(attachRequest(newTransport(4), protocol.HandshakeMsg{ClientToken: "tok-a", Username: "alice"}, 1), time.Now())
		if resp.Result != protocol.ResultRoundNotStarted {
			t.Fatalf("result = %s, want %s", resp.Result, protocol.ResultRoundNotStarted)
		}
		if s.phase != PhaseWaiting || !s.start.IsZero() {
			t.Fatalf("refused attach started the round: phase=%s", s.phase)
		}

		// An observer needs no creature and does start the round.
		obs := e.attachLocked(attachRequest(newTransport(4), protocol.HandshakeMsg{ClientToken: "tok-o", Observer: true}, 2), time.Now())
		if obs.Result != protocol.ResultSuccess || s.phase != PhaseActive {
			t.Fatalf("observer attach: result=%s phase=%s", obs.Result, s.phase)
		}
	})
}

func TestEngine_ResumeReplayNeverDropsAck(t *testing.T) {
	e, s := idleEngine(t, Options{})
	first := attachRequest(newTransport(64), protocol.HandshakeMsg{ClientToken: "tok-a", Username: "alice"}, 1)
	if resp := e.attachLocked(first, time.Now()); resp.Result != protocol.ResultSuccess {
		t.Fatalf("first attach: %+v", resp)
	}
	for id := int64(1); id <= 20; id++ {
		s.dispatch.Record("tok-a", id, world.Outcome{Kind: world.ActionNull, Performed: true})
	}

	tr := newTransport(8)
	resp := e.attachLocked(attachRequest(tr, protocol.HandshakeMsg{ClientToken: "tok-a", IsResumption: true}, 1), time.Now())
	if resp.Result != protocol.ResultSuccess {
		t.Fatalf("resume: %+v", resp)
	}
	if r := next(t, tr.out, time.Second); r.typ != protocol.TypeHandshakeAck {
		t.Fatalf("first message after resume = %s, want %s", r.typ, protocol.TypeHandshakeAck)
	}

	c := s.conns["tok-a"]
	if len(c.backlog) == 0 {
		t.Fatalf("expected results waiting behind the full queue")
	}
	// A frame cannot overtake queued results.
	if e.sendFrame(s, c, 1, time.Now(), 60, nil) {
		t.Fatalf("frame queued ahead of the backlog")
	}

	var ids []int64
	for len(ids) < 20 {
		select {
		case ob := <-tr.out:
			r := received{typ: typeOf(t, ob), raw: ob}
			if r.typ != protocol.TypeActionResult {
				t.Fatalf("unexpected %s among resent results", r.typ)
			}
			var msg protocol.ActionResultMsg
			r.decode(t, &msg)
			ids = append(ids, msg.MessageID)
		default:
			if flushBacklog(c) && len(tr.out) == 0 {
				t.Fatalf("results lost: got %v", ids)
			}
		}
	}
	for i, id := range ids {
		if id != int64(i+1) {
			t.Fatalf("resent ids out of order: %v", ids)
		}
	}

	if !e.sendFrame(s, c, 2, time.Now(), 60, nil) {
		t.Fatalf("frame not queued after the backlog drained")
	}
	var frame protocol.ViewFrameMsg
	waitFor(t, tr.out, protocol.TypeViewFrame, nil).decode(t, &frame)
	if !frame.Full {
		t.Fatalf("frame after a dropped frame is not full")
	}
}

func TestEngine_DroppedFrameForcesFull(t *testing.T) {
	e, s := idleEngine(t, Options{})
	tr := newTransport(1)
	e.attachLocked(attachRequest(tr, protocol.HandshakeMsg{ClientToken: "tok-a", Username: "alice"}, 1), time.Now())
	c := s.conns["tok-a"]

	// The handshake ack fills the queue.
	if e.sendFrame(s, c, 1, time.Now(), 60, nil) {
		t.Fatalf("frame queued into a full queue")
	}
	if next(t, tr.out, time.Second).typ != protocol.TypeHandshakeAck {
		t.Fatalf("ack missing")
	}
	if !e.sendFrame(s, c, 2, time.Now(), 60, nil) {
		t.Fatalf("frame not queued")
	}
	var frame protocol.ViewFrameMsg
	next(t, tr.out, time.Second).decode(t, &frame)
	if !frame.Full || frame.Seq != 1 {
		t.Fatalf("frame after drop: full=%v seq=%d", frame.Full, frame.Seq)
	}
	if e.outboundDropped.Load() != 1 {
		t.Fatalf("dropped = %d", e.outboundDropped.Load())
	}
}

func TestEngine_BacklogOverflowClosesTransport(t *testing.T) {
	e, s := idleEngine(t, Options{})
	tr := newTransport(1)
	e.attachLocked(attachRequest(tr, protocol.HandshakeMsg{ClientToken: "tok-a", Username: "alice"}, 1), time.Now())
	c := s.conns["tok-a"]

	for id := int64(1); id <= maxBacklog+1; id++ {
		e.send(c, protocol.ActionResultMsg{Type: protocol.TypeActionResult, ProtocolVersion: protocol.Version, MessageID: id})
	}
	select {
	case reason := <-tr.closed:
		if reason != protocol.CloseSlowConsumer {
			t.Fatalf("closed with %q", reason)
		}
	default:
		t.Fatalf("transport not closed")
	}
	if c.connected() || c.backlog != nil {
		t.Fatalf("connection still attached after overflow")
	}
	if e.send(c, protocol.ActionResultMsg{Type: protocol.TypeActionResult}) {
		t.Fatalf("send to a closed connection succeeded")
	}
}

func TestEngine_NextRoundStartsAfterBreak(t *testing.T) {
	cfg := testTuning()
	cfg.RoundSeconds = 1
	cfg.BetweenRoundsSeconds = 1
	core, logs := observer.New(zap.InfoLevel)
	e := startEngine(t, cfg, Options{Log: zap.New(core)})

	tr := newTransport(8192)
	first := attach(t, e, tr, protocol.HandshakeMsg{ClientToken: "tok-a", Username: "alice"}, 1)
	select {
	case <-tr.closed:
	case <-time.After(5 * time.Second):
		t.Fatalf("round did not end")
	}

	nextID := first.RoundID + 1
	m := waitMetrics(t, e, func(m Metrics) bool { return m.RoundID == nextID })
	if m.Phase != PhaseWaiting || m.RoundsCompleted != 1 {
		t.Fatalf("new round metrics: %+v", m)
	}

	deadline := time.Now().Add(3 * time.Second)
	for logs.FilterMessage("round released").FilterField(zap.Int64("round", first.RoundID)).Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("round %d was never released", first.RoundID)
		}
		time.Sleep(5 * time.Millisecond)
	}

	stale := attach(t, e, newTransport(16), protocol.HandshakeMsg{ClientToken: "tok-a", IsResumption: true}, 1)
	if stale.Result != protocol.ResultRoundOver {
		t.Fatalf("resumption from the previous round = %s", stale.Result)
	}
	time.Sleep(30 * time.Millisecond)
	if m := e.Metrics(); m.Phase != PhaseWaiting {
		t.Fatalf("stale resumption started the round: %s", m.Phase)
	}

	fresh := newTransport(8192)
	resp := attach(t, e, fresh, protocol.HandshakeMsg{ClientToken: "tok-b", Username: "bob"}, 2)
	if resp.Result != protocol.ResultSuccess || resp.RoundID != nextID {
		t.Fatalf("fresh attach: %+v", resp)
	}
	var ack protocol.HandshakeAckMsg
	next(t, fresh.out, time.Second).decode(t, &ack)
	if ack.RoundID != nextID {
		t.Fatalf("ack round = %d, want %d", ack.RoundID, nextID)
	}
	waitMetrics(t, e, func(m Metrics) bool { return m.RoundID == nextID && m.Phase == PhaseActive && m.Players == 1 })
}

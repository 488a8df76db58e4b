// Package session keeps a client's connection to the game server alive: it handshakes,
// replays recent actions after a reconnect and backs off between attempts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"roguecloud.io/internal/protocol"
	"roguecloud.io/internal/sim/world"
)

type State int32

const (
	StateInitial State = iota
	StateAwaitingHandshakeAck
	StateAwaitingResend
	StateActive
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateAwaitingHandshakeAck:
		return "AWAITING_HANDSHAKE_ACK"
	case StateAwaitingResend:
		return "AWAITING_RESEND"
	case StateActive:
		return "ACTIVE"
	case StateTerminal:
		return "TERMINAL"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

const (
	retriedMaxEntries = 200
	retriedMaxAge     = 10 * time.Minute
)

type Config struct {
	URL      string
	Token    string
	Username string
	Password string
	Observer bool
	// Compression asks the server for zstd binary frames.
	Compression bool

	ResendLimit         int
	MinBackoff          time.Duration
	MaxBackoff          time.Duration
	RoundNotStartedWait time.Duration

	Dialer *websocket.Dialer
	Log    *zap.Logger
}

func (c *Config) applyDefaults() {
	if c.Token == "" {
		c.Token = uuid.NewString()
	}
	if c.ResendLimit <= 0 {
		c.ResendLimit = 100
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = c.MinBackoff
	}
	if c.RoundNotStartedWait <= 0 {
		c.RoundNotStartedWait = 10 * time.Second
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Log == nil {
		c.Log = zap.NewNop()
	}
}

// Message is a server message handed to the application. Payload is plain JSON.
type Message struct {
	Type    string
	Payload []byte
}

// Handler receives server messages on the connection's reader goroutine.
type Handler func(Message)

type sent struct {
	id   int64
	data []byte
}

// Session is one logical client connection across any number of transports.
type Session struct {
	cfg     Config
	log     *zap.Logger
	handler Handler

	mu          sync.Mutex
	state       State
	tr          *transport
	buffer      []sent
	nextID      int64
	lastAcked   int64
	resumable   bool
	backoff     time.Duration
	retried     map[string]time.Time
	roundID     int64
	nextRoundIn int
	err         error
	reconnects  int
	timer       *time.Timer

	wake     chan struct{}
	terminal chan struct{}
}

func New(cfg Config, h Handler) *Session {
	cfg.applyDefaults()
	if h == nil {
		h = func(Message) {}
	}
	return &Session{
		cfg:      cfg,
		log:      cfg.Log.With(zap.String("conn", cfg.Token)),
		handler:  h,
		nextID:   1,
		backoff:  cfg.MinBackoff,
		retried:  map[string]time.Time{},
		wake:     make(chan struct{}, 1),
		terminal: make(chan struct{}),
	}
}

func (s *Session) Token() string { return s.cfg.Token }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) RoundID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roundID
}

// NextRoundIn is the delay announced by ROUND_COMPLETE, in seconds.
func (s *Session) NextRoundIn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRoundIn
}

// Err returns why the session became terminal.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Run connects and keeps reconnecting until the session becomes terminal or ctx ends.
func (s *Session) Run(ctx context.Context) error {
	s.signalWake()
	for {
		select {
		case <-ctx.Done():
			s.terminate(ErrClosed)
			return ctx.Err()
		case <-s.terminal:
			return s.Err()
		case <-s.wake:
			s.connect(ctx)
		}
	}
}

func (s *Session) Close() { s.terminate(ErrClosed) }

// Send queues an action and returns its message id. While not ACTIVE the action is only
// buffered and goes out with the next resend.
func (s *Session) Send(a world.Action) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminal {
		return 0, s.err
	}
	id := s.nextID
	s.nextID++
	data, err := json.Marshal(protocol.ActionMsg{
		Type:            protocol.TypeAction,
		ProtocolVersion: protocol.Version,
		MessageID:       id,
		Action:          protocol.FromAction(a),
	})
	if err != nil {
		return 0, err
	}
	s.buffer = append(s.buffer, sent{id: id, data: data})
	if over := len(s.buffer) - s.cfg.ResendLimit; over > 0 {
		s.buffer = append(s.buffer[:0:0], s.buffer[over:]...)
	}
	if s.state == StateActive && s.tr != nil {
		s.tr.enqueue(data)
	}
	return id, nil
}

// Buffered returns the message ids currently kept for resend, oldest first.
func (s *Session) Buffered() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.buffer))
	for i, m := range s.buffer {
		out[i] = m.id
	}
	return out
}

func (s *Session) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) connect(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateInitial {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := s.cfg.Dialer.DialContext(dialCtx, s.cfg.URL, nil)
	cancel()
	if err != nil {
		s.log.Debug("dial failed", zap.Error(err))
		s.mu.Lock()
		s.scheduleLocked(s.nextBackoffLocked())
		s.mu.Unlock()
		return
	}

	t := newTransport(uuid.NewString(), conn)
	s.mu.Lock()
	if s.state != StateInitial {
		s.mu.Unlock()
		go t.close()
		return
	}
	data, err := s.handshakeLocked()
	if err != nil {
		s.mu.Unlock()
		go t.close()
		s.terminate(fmt.Errorf("encode handshake: %w", err))
		return
	}
	s.tr = t
	s.state = StateAwaitingHandshakeAck
	t.enqueue(data)
	s.mu.Unlock()

	go t.writeLoop(func(err error) { s.fail(t, err) })
	go s.readLoop(t)
}

// handshakeLocked encodes the handshake for the next transport, resuming when the session was active before.
func (s *Session) handshakeLocked() ([]byte, error) {
	hs := protocol.HandshakeMsg{
		Type:               protocol.TypeHandshake,
		ProtocolVersion:    protocol.Version,
		ClientToken:        s.cfg.Token,
		Username:           s.cfg.Username,
		Password:           s.cfg.Password,
		LastAckedMessageID: s.lastAcked,
		IsResumption:       s.resumable,
		Observer:           s.cfg.Observer,
	}
	if s.cfg.Compression {
		hs.Compression = protocol.CompressionZstd
	}
	return json.Marshal(hs)
}

func (s *Session) readLoop(t *transport) {
	for {
		mt, msg, err := t.conn.ReadMessage()
		if err != nil {
			s.fail(t, err)
			return
		}
		payload, err := protocol.Payload(msg, mt == websocket.BinaryMessage)
		if err != nil {
			s.fail(t, err)
			return
		}
		base, err := protocol.DecodeBase(payload)
		if err != nil {
			s.log.Debug("undecodable message", zap.Error(err))
			continue
		}
		if !s.dispatch(t, base.Type, payload) {
			return
		}
	}
}

// dispatch handles one message and reports whether the reader should continue.
func (s *Session) dispatch(t *transport, typ string, payload []byte) bool {
	switch typ {
	case protocol.TypeHandshakeAck:
		var ack protocol.HandshakeAckMsg
		if err := json.Unmarshal(payload, &ack); err != nil {
			s.fail(t, err)
			return false
		}
		return s.onHandshakeAck(t, ack, payload)
	case protocol.TypeActionResult:
		var res protocol.ActionResultMsg
		if err := json.Unmarshal(payload, &res); err == nil {
			s.mu.Lock()
			if res.MessageID > s.lastAcked {
				s.lastAcked = res.MessageID
			}
			s.mu.Unlock()
		}
	case protocol.TypeHealthProbe:
		var probe protocol.HealthProbeMsg
		if err := json.Unmarshal(payload, &probe); err == nil {
			data, err := json.Marshal(protocol.HealthProbeAckMsg{
				Type:            protocol.TypeHealthProbeAck,
				ProtocolVersion: protocol.Version,
				ID:              probe.ID,
			})
			if err != nil {
				s.log.Debug("encode health probe ack", zap.Int64("probe", probe.ID), zap.Error(err))
				return true
			}
			t.enqueue(data)
		}
		return true
	case protocol.TypeRoundComplete:
		var rc protocol.RoundCompleteMsg
		if err := json.Unmarshal(payload, &rc); err == nil {
			s.mu.Lock()
			s.nextRoundIn = rc.NextRoundInSeconds
			s.mu.Unlock()
		}
		s.handler(Message{Type: typ, Payload: payload})
		s.terminate(ErrRoundOver)
		return false
	}
	if s.current(t) {
		s.handler(Message{Type: typ, Payload: payload})
	}
	return true
}

func (s *Session) current(t *transport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr == t
}

func (s *Session) onHandshakeAck(t *transport, ack protocol.HandshakeAckMsg, payload []byte) bool {
	s.mu.Lock()
	if s.tr != t || s.state != StateAwaitingHandshakeAck {
		s.mu.Unlock()
		return false
	}
	if ack.Result != protocol.ResultSuccess {
		rej := &RejectedError{Result: ack.Result, Message: ack.Message}
		if errors.Is(rej, ErrRoundNotStarted) {
			s.log.Info("round not started, waiting", zap.Duration("wait", s.cfg.RoundNotStartedWait))
			s.dropTransportLocked(t)
			s.scheduleLocked(s.cfg.RoundNotStartedWait)
			s.mu.Unlock()
			return false
		}
		s.mu.Unlock()
		s.terminate(rej)
		return false
	}

	// Resend everything kept, in order, before any live send can interleave.
	s.state = StateAwaitingResend
	s.roundID = ack.RoundID
	for _, m := range s.buffer {
		t.enqueue(m.data)
	}
	s.state = StateActive
	s.resumable = true
	s.backoff = s.cfg.MinBackoff
	n := len(s.buffer)
	s.mu.Unlock()

	s.log.Info("session active", zap.Int64("round", ack.RoundID), zap.String("transport", ack.TransportID), zap.Int("resent", n))
	s.handler(Message{Type: protocol.TypeHandshakeAck, Payload: payload})
	return true
}

// fail handles a transport error. Repeated reports for the same transport are ignored.
func (s *Session) fail(t *transport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.retried[t.id]; seen {
		return
	}
	s.retried[t.id] = time.Now()
	s.pruneRetriedLocked()
	if s.state == StateTerminal || s.tr != t {
		go t.close()
		return
	}
	s.log.Info("transport failed", zap.String("transport", t.id), zap.String("state", s.state.String()), zap.Error(err))
	s.dropTransportLocked(t)
	s.scheduleLocked(s.nextBackoffLocked())
}

// dropTransportLocked closes t on its own goroutine and returns to INITIAL.
func (s *Session) dropTransportLocked(t *transport) {
	s.retried[t.id] = time.Now()
	s.tr = nil
	s.state = StateInitial
	go t.close()
}

func (s *Session) nextBackoffLocked() time.Duration {
	d := s.backoff
	s.backoff *= 2
	if s.backoff > s.cfg.MaxBackoff {
		s.backoff = s.cfg.MaxBackoff
	}
	return d
}

func (s *Session) scheduleLocked(d time.Duration) {
	if s.state == StateTerminal {
		return
	}
	s.reconnects++
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, s.signalWake)
}

func (s *Session) pruneRetriedLocked() {
	if len(s.retried) <= retriedMaxEntries {
		return
	}
	cutoff := time.Now().Add(-retriedMaxAge)
	for id, at := range s.retried {
		if at.Before(cutoff) {
			delete(s.retried, id)
		}
	}
}

func (s *Session) terminate(err error) {
	s.mu.Lock()
	if s.state == StateTerminal {
		s.mu.Unlock()
		return
	}
	s.state = StateTerminal
	s.err = err
	t := s.tr
	s.tr = nil
	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.terminal)
	s.mu.Unlock()

	if t != nil {
		go t.close()
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, ErrRoundOver) {
		s.log.Info("session ended", zap.Error(err))
	} else {
		s.log.Warn("session terminated", zap.Error(err))
	}
}

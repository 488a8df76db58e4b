package round

import (
	"context"
	"time"

	"roguecloud.io/internal/aisched"
	"roguecloud.io/internal/dispatch"
	"roguecloud.io/internal/protocol"
	"roguecloud.io/internal/sim/world"
)

type Phase string

const (
	PhaseWaiting Phase = "WAITING_FOR_FIRST_CONNECTION"
	PhaseActive  Phase = "ACTIVE"
	PhaseOver    Phase = "OVER"
)

// Outbound is one encoded message for a connection's writer.
type Outbound struct {
	Data   []byte
	Binary bool
}

// AttachRequest registers a transport that completed the credential and version checks.
type AttachRequest struct {
	Handshake protocol.HandshakeMsg
	UserID    int64
	Username  string

	// Out is drained by the transport's writer. The engine never closes it.
	Out chan Outbound
	// Close asks the transport to flush Out, write final in order and close. It must not block.
	Close func(reason string, final []Outbound)

	Resp chan AttachResponse
}

type AttachResponse struct {
	Result      string
	RoundID     int64
	TransportID string
	Message     string
	Conn        *Handle
}

// Handle lets a transport feed actions for the connection it attached.
type Handle struct {
	Token       string
	TransportID string
	RoundID     int64
	CreatureID  int64
	Observer    bool

	dispatcher *dispatch.Dispatcher
}

// Offer queues a client action; safe from any goroutine.
func (h *Handle) Offer(messageID int64, a world.Action) bool {
	if h == nil || h.dispatcher == nil || h.Observer {
		return false
	}
	return h.dispatcher.Offer(h.Token, messageID, a)
}

type detachReq struct {
	token       string
	transportID string
}

type ackReq struct {
	token       string
	transportID string
	id          int64
}

type ScoreEntry struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
}

// ScoreSink persists round results. It is called off the round goroutine.
type ScoreSink interface {
	SaveScores(ctx context.Context, roundID int64, entries []ScoreEntry) error
}

type TickEntry struct {
	RoundID   int64   `json:"round_id"`
	Tick      uint64  `json:"tick"`
	Players   int     `json:"players"`
	Monsters  int     `json:"monsters"`
	Actions   int     `json:"actions"`
	Intents   int     `json:"intents"`
	Frames    int     `json:"frames"`
	StepMS    float64 `json:"step_ms"`
	SecsLeft  int     `json:"secs_left"`
	Connected int     `json:"connected"`
}

type RoundEntry struct {
	RoundID int64        `json:"round_id"`
	Start   time.Time    `json:"start"`
	End     time.Time    `json:"end"`
	Ticks   uint64       `json:"ticks"`
	Scores  []ScoreEntry `json:"scores"`
}

// Journal receives per-tick and per-round summaries on the round goroutine.
type Journal interface {
	WriteTick(TickEntry)
	WriteRound(RoundEntry)
}

// Metrics is a read-only view of the engine, updated once per tick.
type Metrics struct {
	RoundID       int64   `json:"round_id"`
	Phase         Phase   `json:"phase"`
	Tick          uint64  `json:"tick"`
	RoundSecsLeft int     `json:"round_secs_left"`
	Connections   int     `json:"connections"`
	Connected     int     `json:"connected"`
	Observers     int     `json:"observers"`
	Players       int     `json:"players"`
	Monsters      int     `json:"monsters"`
	GroundObjects int     `json:"ground_objects"`
	StepMS        float64 `json:"step_ms"`

	ActionQueueDepth  int    `json:"action_queue_depth"`
	ActionsDropped    uint64 `json:"actions_dropped"`
	ActionsDuplicate  uint64 `json:"actions_duplicate"`
	ActionsApplied    uint64 `json:"actions_applied"`
	FramesSent        uint64 `json:"frames_sent"`
	FullFramesSent    uint64 `json:"full_frames_sent"`
	OutboundDropped   uint64 `json:"outbound_dropped"`
	HealthProbesSent  uint64 `json:"health_probes_sent"`
	HealthCheckFailed uint64 `json:"health_check_failed"`
	RecoveredPanics   uint64 `json:"recovered_panics"`
	RoundsCompleted   uint64 `json:"rounds_completed"`

	AI aisched.Stats `json:"ai"`
}

package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"roguecloud.io/internal/logging"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	// Round lifecycle.
	TickMs                   int `yaml:"tick_ms"`
	RoundSeconds             int `yaml:"round_seconds"`
	BetweenRoundsSeconds     int `yaml:"between_rounds_seconds"`
	ReviveAfterTicks         int `yaml:"revive_after_ticks"`
	LingerOnDeadTicks        int `yaml:"linger_on_dead_ticks"`
	DeathMaxHPPermille       int `yaml:"death_max_hp_permille"`
	EventRetentionTicks      int `yaml:"event_retention_ticks"`
	ActionAttemptsPerTick    int `yaml:"action_attempts_per_tick"`
	FollowSeconds            int `yaml:"follow_seconds"`
	HealthProbeEveryTicks    int `yaml:"health_probe_every_ticks"`
	HealthProbeWindowSeconds int `yaml:"health_probe_window_seconds"`

	// World.
	WorldWidth     int   `yaml:"world_width"`
	WorldHeight    int   `yaml:"world_height"`
	Seed           int64 `yaml:"seed"`
	MonsterTarget  int   `yaml:"monster_target"`
	ItemsPerPlayer int   `yaml:"items_per_player"`

	// Views.
	AgentViewWidth      int `yaml:"agent_view_width"`
	AgentViewHeight     int `yaml:"agent_view_height"`
	ObserverViewWidth   int `yaml:"observer_view_width"`
	ObserverViewHeight  int `yaml:"observer_view_height"`
	AISnapshotRadius    int `yaml:"ai_snapshot_radius"`
	OutboundQueueLength int `yaml:"outbound_queue_length"`

	// Workers and queues.
	AIWorkersPerCPU int `yaml:"ai_workers_per_cpu"`
	ActionQueueCap  int `yaml:"action_queue_cap"`
	DedupWindow     int `yaml:"dedup_window"`

	Log logging.Config `yaml:"log"`
}

// Defaults mirrors configs/tuning.yaml.
func Defaults() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = "1.0"
	}
	if t.TickMs <= 0 {
		t.TickMs = 100
	}
	if t.RoundSeconds <= 0 {
		t.RoundSeconds = 5 * 60
	}
	if t.BetweenRoundsSeconds <= 0 {
		t.BetweenRoundsSeconds = 20
	}
	if t.ReviveAfterTicks <= 0 {
		t.ReviveAfterTicks = 100
	}
	if t.LingerOnDeadTicks <= 0 {
		t.LingerOnDeadTicks = 50
	}
	if t.DeathMaxHPPermille <= 0 || t.DeathMaxHPPermille > 1000 {
		t.DeathMaxHPPermille = 800
	}
	if t.EventRetentionTicks <= 0 {
		t.EventRetentionTicks = 100
	}
	if t.ActionAttemptsPerTick <= 0 {
		t.ActionAttemptsPerTick = 3
	}
	if t.FollowSeconds <= 0 {
		t.FollowSeconds = 10
	}
	if t.HealthProbeEveryTicks <= 0 {
		t.HealthProbeEveryTicks = 100
	}
	if t.HealthProbeWindowSeconds <= 0 {
		t.HealthProbeWindowSeconds = 8
	}
	if t.WorldWidth <= 0 {
		t.WorldWidth = 161
	}
	if t.WorldHeight <= 0 {
		t.WorldHeight = 191
	}
	if t.Seed == 0 {
		t.Seed = 1337
	}
	if t.MonsterTarget <= 0 {
		t.MonsterTarget = 30
	}
	if t.ItemsPerPlayer <= 0 {
		t.ItemsPerPlayer = 20
	}
	if t.AgentViewWidth <= 0 {
		t.AgentViewWidth = 80
	}
	if t.AgentViewHeight <= 0 {
		t.AgentViewHeight = 40
	}
	if t.ObserverViewWidth <= 0 {
		t.ObserverViewWidth = 40
	}
	if t.ObserverViewHeight <= 0 {
		t.ObserverViewHeight = 40
	}
	if t.AISnapshotRadius <= 0 {
		t.AISnapshotRadius = 20
	}
	if t.OutboundQueueLength <= 0 {
		t.OutboundQueueLength = 256
	}
	if t.AIWorkersPerCPU <= 0 {
		t.AIWorkersPerCPU = 10
	}
	if t.ActionQueueCap <= 0 {
		t.ActionQueueCap = 500
	}
	if t.DedupWindow < 600 {
		t.DedupWindow = 600
	}
}

func (t Tuning) TickDuration() time.Duration { return time.Duration(t.TickMs) * time.Millisecond }
func (t Tuning) RoundDuration() time.Duration {
	return time.Duration(t.RoundSeconds) * time.Second
}
func (t Tuning) BetweenRounds() time.Duration {
	return time.Duration(t.BetweenRoundsSeconds) * time.Second
}

// Load reads a yaml file and fills unset fields with defaults.
func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"roguecloud.io/internal/round"
)

type metricsSource interface {
	Metrics() round.Metrics
}

type droppedCounter interface {
	Dropped() uint64
}

func newMux(engine metricsSource, game interface{ Handler() http.HandlerFunc }, journal droppedCounter, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		var dropped uint64
		if journal != nil {
			dropped = journal.Dropped()
		}
		writeMetrics(rw, engine.Metrics(), dropped)
	})

	if envBool("RC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(engine.Metrics())
		})
	} else {
		logger.Info("admin endpoints disabled (RC_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("RC_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	if game != nil {
		mux.HandleFunc("/v1/ws", game.Handler())
	}
	return mux
}

// writeMetrics renders the Prometheus text exposition format.
func writeMetrics(w io.Writer, m round.Metrics, journalDropped uint64) {
	roundID := strconv.FormatInt(m.RoundID, 10)
	gauge := func(name, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s{round=%q} %v\n", name, roundID, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n", name, v)
	}

	gauge("roguecloud_round_tick", "Current tick of the round.", m.Tick)
	fmt.Fprintf(w, "# HELP roguecloud_round_phase Round phase (1 for the current phase).\n")
	fmt.Fprintf(w, "# TYPE roguecloud_round_phase gauge\n")
	for _, p := range []round.Phase{round.PhaseWaiting, round.PhaseActive, round.PhaseOver} {
		v := 0
		if m.Phase == p {
			v = 1
		}
		fmt.Fprintf(w, "roguecloud_round_phase{round=%q,phase=%q} %d\n", roundID, p, v)
	}
	gauge("roguecloud_round_secs_left", "Seconds until the round ends.", m.RoundSecsLeft)
	gauge("roguecloud_connections", "Registered client tokens in the round.", m.Connections)
	gauge("roguecloud_connected", "Connections with a live transport.", m.Connected)
	gauge("roguecloud_observers", "Observer connections.", m.Observers)
	gauge("roguecloud_creatures_players", "Player creatures.", m.Players)
	gauge("roguecloud_creatures_monsters", "Monster creatures.", m.Monsters)
	gauge("roguecloud_ground_objects", "Objects lying on the map.", m.GroundObjects)
	gauge("roguecloud_action_queue_depth", "Queued client actions.", m.ActionQueueDepth)
	gauge("roguecloud_ai_in_flight", "Decisions being computed.", m.AI.InFlight)
	gauge("roguecloud_ai_queue_depth", "Decisions waiting for a worker.", m.AI.QueueDepth)
	gauge("roguecloud_step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))

	counter("roguecloud_actions_applied_total", "Client actions applied.", m.ActionsApplied)
	counter("roguecloud_actions_dropped_total", "Client actions evicted from a full queue.", m.ActionsDropped)
	counter("roguecloud_actions_duplicate_total", "Client actions skipped as already seen.", m.ActionsDuplicate)
	counter("roguecloud_ai_submitted_total", "Decisions submitted to workers.", m.AI.SubmittedTotal)
	counter("roguecloud_ai_busy_drop_total", "Submissions dropped while a decision was in flight.", m.AI.BusyDropTotal)
	counter("roguecloud_ai_full_drop_total", "Submissions dropped on a full queue.", m.AI.FullDropTotal)
	counter("roguecloud_ai_panics_total", "Decision functions that panicked.", m.AI.PanicTotal)
	counter("roguecloud_frames_sent_total", "View frames queued.", m.FramesSent)
	counter("roguecloud_full_frames_sent_total", "Full view frames queued.", m.FullFramesSent)
	counter("roguecloud_outbound_dropped_total", "Outbound messages evicted from a full queue.", m.OutboundDropped)
	counter("roguecloud_health_probes_sent_total", "Health probes sent.", m.HealthProbesSent)
	counter("roguecloud_health_check_failed_total", "Health probes left unanswered.", m.HealthCheckFailed)
	counter("roguecloud_recovered_panics_total", "Panics recovered on the round goroutine.", m.RecoveredPanics)
	counter("roguecloud_rounds_completed_total", "Rounds completed since start.", m.RoundsCompleted)
	counter("roguecloud_journal_dropped_total", "Journal records dropped.", journalDropped)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

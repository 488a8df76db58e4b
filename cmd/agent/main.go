package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"roguecloud.io/internal/logging"
	"roguecloud.io/internal/protocol"
	"roguecloud.io/internal/session"
	"roguecloud.io/internal/viewsync"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		username = flag.String("user", "agent", "username")
		password = flag.String("password", "", "password")
		observer = flag.Bool("observer", false, "connect as an observer")
		compress = flag.Bool("zstd", false, "request zstd compressed frames")
		rounds   = flag.Int("rounds", 0, "stop after this many rounds (0 = forever)")
		level    = flag.String("log_level", "info", "log level")
	)
	flag.Parse()

	logger, closeLog, err := logging.New(logging.Config{Level: *level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for played := 0; *rounds == 0 || played < *rounds; played++ {
		cfg := session.Config{
			URL:         *url,
			Token:       uuid.NewString(),
			Username:    *username,
			Password:    *password,
			Observer:    *observer,
			Compression: *compress,
			Log:         logger.Named("session"),
		}
		s, err := playRound(ctx, cfg, logger)
		if ctx.Err() != nil {
			return
		}
		if !errors.Is(err, session.ErrRoundOver) {
			logger.Error("session ended", zap.Error(err))
			os.Exit(1)
		}
		wait := time.Duration(s.NextRoundIn())*time.Second + 500*time.Millisecond
		logger.Info("round over", zap.Int64("round", s.RoundID()), zap.Duration("next_in", wait))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// playRound runs one session for one round, answering every newly applied frame with an action.
func playRound(ctx context.Context, cfg session.Config, logger *zap.Logger) (*session.Session, error) {
	var (
		mu       sync.Mutex
		view     = viewsync.NewClientView()
		b        = newBrain(time.Now().UnixNano())
		lastTick uint64
		s        *session.Session
	)
	s = session.New(cfg, func(m session.Message) {
		switch m.Type {
		case protocol.TypeViewFrame:
			var f protocol.ViewFrameMsg
			if err := json.Unmarshal(m.Payload, &f); err != nil {
				logger.Debug("bad frame", zap.Error(err))
				return
			}
			mu.Lock()
			defer mu.Unlock()
			applied, err := view.Receive(&f)
			if err != nil {
				logger.Warn("apply frame", zap.Uint64("seq", f.Seq), zap.Error(err))
				return
			}
			cw := view.World()
			if len(applied) == 0 || cw.Tick <= lastTick {
				return
			}
			lastTick = cw.Tick
			if cfg.Observer {
				return
			}
			if _, err := s.Send(b.decide(cw)); err != nil {
				logger.Debug("send", zap.Error(err))
			}
		case protocol.TypeActionResult:
			var res protocol.ActionResultMsg
			if err := json.Unmarshal(m.Payload, &res); err == nil && !res.Outcome.Performed {
				logger.Debug("action failed", zap.Int64("id", res.MessageID), zap.String("kind", res.Outcome.Kind), zap.String("reason", res.Outcome.FailReason))
			}
		}
	})
	logger.Info("connecting", zap.String("url", cfg.URL), zap.String("token", cfg.Token))
	err := s.Run(ctx)
	return s, err
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"roguecloud.io/internal/auth"
	"roguecloud.io/internal/logging"
	"roguecloud.io/internal/persistence/leaderboard"
	persistlog "roguecloud.io/internal/persistence/log"
	"roguecloud.io/internal/round"
	"roguecloud.io/internal/sim/tuning"
	"roguecloud.io/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		usersPath  = flag.String("users", "", "path to users.yaml (default: <configs>/users.yaml)")
		logFile    = flag.String("log_file", "", "rolling log file (overrides tuning log.file)")
		disableDB  = flag.Bool("disable_db", false, "disable the leaderboard database")
		tickEvery  = flag.Int("journal_every", 10, "write every n-th tick summary to the round journal")
	)
	flag.Parse()

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if !os.IsNotExist(tuneErr) {
			fmt.Fprintf(os.Stderr, "load tuning: %v\n", tuneErr)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}
	if *logFile != "" {
		tune.Log.File = *logFile
	}

	logger, closeLog, err := logging.New(tune.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	if tuneErr != nil {
		logger.Info("tuning not found; using defaults", zap.String("path", tp))
	}

	up := strings.TrimSpace(*usersPath)
	if up == "" {
		up = filepath.Join(*configDir, "users.yaml")
	}
	users, err := auth.LoadUsers(up)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatal("load users", zap.Error(err))
		}
		logger.Warn("users file not found; accepting any credentials", zap.String("path", up))
		users = auth.NewUsers(true)
	}

	ctx, cancel := signalContext()
	defer cancel()

	opts := round.Options{Log: logger.Named("round")}

	if !*disableDB {
		lb, err := leaderboard.Open(filepath.Join(*dataDir, "leaderboard.db"))
		if err != nil {
			logger.Fatal("open leaderboard", zap.Error(err))
		}
		defer lb.Close()
		last, err := lb.LastRoundID(ctx)
		if err != nil {
			logger.Fatal("read last round", zap.Error(err))
		}
		opts.Scores = lb
		opts.FirstRoundID = last + 1
	}

	journal := persistlog.NewJournal(filepath.Join(*dataDir, "rounds"), *tickEvery, logger.Named("journal"))
	defer journal.Close()
	opts.Journal = journal

	engine := round.New(tune, opts)
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("round engine stopped", zap.Error(err))
		}
	}()

	wsSrv := ws.NewServer(engine, users, tune.OutboundQueueLength, logger.Named("ws"))
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(engine, wsSrv, journal, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening",
		zap.String("addr", *addr),
		zap.Int("tick_ms", tune.TickMs),
		zap.Int("round_seconds", tune.RoundSeconds),
		zap.Int64("first_round", opts.FirstRoundID),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("ListenAndServe", zap.Error(err))
	}
	cancel()
	<-engineDone
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// Package leaderboard stores per-round scores in sqlite.
package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"roguecloud.io/internal/round"
)

var ErrClosed = errors.New("leaderboard closed")

type Store struct {
	db *sql.DB

	ch   chan saveReq
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type saveReq struct {
	roundID int64
	entries []round.ScoreEntry
	at      time.Time
	done    chan error
}

// Standing is a user's total across all recorded rounds.
type Standing struct {
	UserID   int64
	Username string
	Total    int64
	Best     int64
	Rounds   int
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, ch: make(chan saveReq, 64)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rounds (
			round_id INTEGER PRIMARY KEY,
			players INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scores (
			round_id INTEGER NOT NULL REFERENCES rounds(round_id),
			user_id INTEGER NOT NULL,
			username TEXT NOT NULL,
			score INTEGER NOT NULL,
			rank INTEGER NOT NULL,
			PRIMARY KEY (round_id, user_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_user ON scores(user_id, round_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// SaveScores records a finished round. Entries are ranked in the order given.
func (s *Store) SaveScores(ctx context.Context, roundID int64, entries []round.ScoreEntry) (err error) {
	if s == nil || s.closed.Load() {
		return ErrClosed
	}
	r := saveReq{roundID: roundID, entries: entries, at: time.Now().UTC(), done: make(chan error, 1)}
	defer func() {
		// Close raced with the send.
		if recover() != nil {
			err = ErrClosed
		}
	}()
	select {
	case s.ch <- r:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-r.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) loop() {
	for r := range s.ch {
		r.done <- s.write(r)
	}
}

func (s *Store) write(r saveReq) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO rounds(round_id,players,recorded_at) VALUES(?,?,?)`,
		r.roundID, len(r.entries), r.at.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("insert round %d: %w", r.roundID, err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO scores(round_id,user_id,username,score,rank) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, e := range r.entries {
		if _, err := stmt.Exec(r.roundID, e.UserID, e.Username, e.Score, i+1); err != nil {
			return fmt.Errorf("insert score round=%d user=%d: %w", r.roundID, e.UserID, err)
		}
	}
	return tx.Commit()
}

// LastRoundID returns the highest recorded round id, or 0.
func (s *Store) LastRoundID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(round_id) FROM rounds`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

// RoundScores returns one round's results in rank order.
func (s *Store) RoundScores(ctx context.Context, roundID int64) ([]round.ScoreEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id,username,score FROM scores WHERE round_id=? ORDER BY rank`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []round.ScoreEntry
	for rows.Next() {
		var e round.ScoreEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Score); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Top returns the users with the highest total score.
func (s *Store) Top(ctx context.Context, limit int) ([]Standing, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id,
		       (SELECT username FROM scores s2 WHERE s2.user_id = s.user_id ORDER BY round_id DESC LIMIT 1),
		       SUM(score), MAX(score), COUNT(*)
		FROM scores s
		GROUP BY user_id
		ORDER BY SUM(score) DESC, user_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Standing
	for rows.Next() {
		var st Standing
		if err := rows.Scan(&st.UserID, &st.Username, &st.Total, &st.Best, &st.Rounds); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

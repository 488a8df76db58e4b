package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"roguecloud.io/internal/logging"
	"roguecloud.io/internal/round"
)

const (
	KindTick  = "tick"
	KindRound = "round"
)

// Record is one journal line.
type Record struct {
	Kind  string            `json:"kind"`
	Tick  *round.TickEntry  `json:"tick,omitempty"`
	Round *round.RoundEntry `json:"round,omitempty"`
}

// Journal writes round summaries off the tick goroutine. It implements round.Journal.
type Journal struct {
	w         *JSONLZstdWriter
	log       *zap.Logger
	tickEvery uint64

	ch      chan Record
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

// NewJournal writes rounds-*.jsonl.zst files under dir, keeping every tickEvery-th tick.
func NewJournal(dir string, tickEvery int, logger *zap.Logger) *Journal {
	if tickEvery <= 0 {
		tickEvery = 1
	}
	logger = logging.OrNop(logger)
	j := &Journal{
		w:         NewJSONLZstdWriter(dir, "rounds"),
		log:       logger,
		tickEvery: uint64(tickEvery),
		ch:        make(chan Record, 4096),
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.loop()
	}()
	return j
}

func (j *Journal) WriteTick(e round.TickEntry) {
	if e.Tick%j.tickEvery != 0 {
		return
	}
	j.enqueue(Record{Kind: KindTick, Tick: &e})
}

func (j *Journal) WriteRound(e round.RoundEntry) {
	j.enqueue(Record{Kind: KindRound, Round: &e})
}

// Dropped counts records discarded because the writer fell behind.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

func (j *Journal) enqueue(r Record) {
	if j == nil || j.closed.Load() {
		return
	}
	select {
	case j.ch <- r:
	default:
		j.dropped.Add(1)
	}
}

func (j *Journal) loop() {
	for r := range j.ch {
		if err := j.w.Write(r); err != nil {
			j.log.Warn("journal write failed", zap.String("kind", r.Kind), zap.Error(err))
			continue
		}
		if r.Kind == KindRound || len(j.ch) == 0 {
			if err := j.w.Flush(); err != nil {
				j.log.Warn("journal flush failed", zap.Error(err))
			}
		}
	}
}

func (j *Journal) Close() error {
	var err error
	j.once.Do(func() {
		j.closed.Store(true)
		close(j.ch)
		j.wg.Wait()
		err = j.w.Close()
	})
	return err
}

// Files lists journal files under dir, oldest first.
func Files(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "rounds-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadFile calls fn for every record in one journal file. A truncated tail, as left by a
// server that is still writing, ends the file without error.
func ReadFile(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

var _ round.Journal = (*Journal)(nil)

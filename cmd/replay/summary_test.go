package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	persistlog "roguecloud.io/internal/persistence/log"
	"roguecloud.io/internal/round"
)

func TestSummarizeJournal(t *testing.T) {
	dir := t.TempDir()
	j := persistlog.NewJournal(dir, 1, zap.NewNop())
	start := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	for tick := uint64(1); tick <= 4; tick++ {
		j.WriteTick(round.TickEntry{RoundID: 3, Tick: tick, Players: int(tick % 3), Connected: 2, Monsters: 10 - int(tick), Actions: 2, Intents: 5, StepMS: float64(tick)})
	}
	j.WriteTick(round.TickEntry{RoundID: 4, Tick: 1, Players: 1})
	j.WriteRound(round.RoundEntry{RoundID: 3, Start: start, End: start.Add(time.Minute), Ticks: 600, Scores: []round.ScoreEntry{
		{UserID: 1, Username: "ann", Score: 10},
		{UserID: 2, Username: "bob", Score: 40},
	}})
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := persistlog.Files(dir)
	if err != nil || len(files) == 0 {
		t.Fatalf("files: %v %v", files, err)
	}
	s := newSummarizer(0)
	for _, f := range files {
		if err := persistlog.ReadFile(f, s.add); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	got := s.summaries()
	if len(got) != 2 || got[0].RoundID != 3 || got[1].RoundID != 4 {
		t.Fatalf("rounds: %+v", got)
	}
	r := got[0]
	if r.Samples != 4 || r.FirstTick != 1 || r.LastTick != 4 || r.MaxPlayers != 2 || r.Monsters != 6 {
		t.Fatalf("ticks: %+v", r)
	}
	if r.Actions != 8 || r.Intents != 20 || r.AvgStepMS != 2.5 || r.MaxStepMS != 4 {
		t.Fatalf("totals: %+v", r)
	}
	if !r.Complete || r.Duration != time.Minute || r.Scores[0].Username != "bob" {
		t.Fatalf("round entry: %+v", r)
	}
	if got[1].Complete {
		t.Fatalf("round 4 should still be in progress")
	}

	var buf bytes.Buffer
	printSummary(&buf, r, 1)
	out := buf.String()
	if !strings.Contains(out, "#1 bob (2) score=40") || strings.Contains(out, "ann") {
		t.Fatalf("print:\n%s", out)
	}
}

func TestSummarizeOnlyRound(t *testing.T) {
	s := newSummarizer(4)
	_ = s.add(persistlog.Record{Kind: persistlog.KindTick, Tick: &round.TickEntry{RoundID: 3, Tick: 1}})
	_ = s.add(persistlog.Record{Kind: persistlog.KindTick, Tick: &round.TickEntry{RoundID: 4, Tick: 7}})
	got := s.summaries()
	if len(got) != 1 || got[0].RoundID != 4 || got[0].LastTick != 7 {
		t.Fatalf("got %+v", got)
	}
}

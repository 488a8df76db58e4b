package main

import (
	"sort"
	"time"

	persistlog "roguecloud.io/internal/persistence/log"
	"roguecloud.io/internal/round"
)

// roundSummary folds the journal records of one round.
type roundSummary struct {
	RoundID    int64              `json:"round_id"`
	Samples    int                `json:"samples"`
	FirstTick  uint64             `json:"first_tick"`
	LastTick   uint64             `json:"last_tick"`
	MaxPlayers int                `json:"max_players"`
	MaxConn    int                `json:"max_connected"`
	Monsters   int                `json:"monsters_last"`
	Actions    int                `json:"actions_sampled"`
	Intents    int                `json:"intents_sampled"`
	AvgStepMS  float64            `json:"avg_step_ms"`
	MaxStepMS  float64            `json:"max_step_ms"`
	Complete   bool               `json:"complete"`
	Ticks      uint64             `json:"ticks,omitempty"`
	Duration   time.Duration      `json:"duration,omitempty"`
	Scores     []round.ScoreEntry `json:"scores,omitempty"`

	stepTotal float64
}

type summarizer struct {
	only   int64
	rounds map[int64]*roundSummary
}

func newSummarizer(only int64) *summarizer {
	return &summarizer{only: only, rounds: map[int64]*roundSummary{}}
}

func (s *summarizer) get(id int64) *roundSummary {
	r := s.rounds[id]
	if r == nil {
		r = &roundSummary{RoundID: id}
		s.rounds[id] = r
	}
	return r
}

func (s *summarizer) add(rec persistlog.Record) error {
	switch rec.Kind {
	case persistlog.KindTick:
		t := rec.Tick
		if t == nil || (s.only != 0 && t.RoundID != s.only) {
			return nil
		}
		r := s.get(t.RoundID)
		if r.Samples == 0 || t.Tick < r.FirstTick {
			r.FirstTick = t.Tick
		}
		if t.Tick > r.LastTick {
			r.LastTick = t.Tick
			r.Monsters = t.Monsters
		}
		r.Samples++
		r.MaxPlayers = max(r.MaxPlayers, t.Players)
		r.MaxConn = max(r.MaxConn, t.Connected)
		r.Actions += t.Actions
		r.Intents += t.Intents
		r.stepTotal += t.StepMS
		r.MaxStepMS = max(r.MaxStepMS, t.StepMS)
		r.AvgStepMS = r.stepTotal / float64(r.Samples)
	case persistlog.KindRound:
		e := rec.Round
		if e == nil || (s.only != 0 && e.RoundID != s.only) {
			return nil
		}
		r := s.get(e.RoundID)
		r.Complete = true
		r.Ticks = e.Ticks
		r.Duration = e.End.Sub(e.Start)
		r.Scores = append([]round.ScoreEntry(nil), e.Scores...)
		sort.SliceStable(r.Scores, func(i, j int) bool { return r.Scores[i].Score > r.Scores[j].Score })
	}
	return nil
}

// summaries returns the rounds ordered by id.
func (s *summarizer) summaries() []*roundSummary {
	out := make([]*roundSummary, 0, len(s.rounds))
	for _, r := range s.rounds {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundID < out[j].RoundID })
	return out
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	persistlog "roguecloud.io/internal/persistence/log"
)

func main() {
	var (
		dir    = flag.String("dir", "./data/rounds", "journal directory containing rounds-*.jsonl.zst")
		only   = flag.Int64("round", 0, "only summarize this round id")
		top    = flag.Int("top", 5, "scores to print per round")
		asJSON = flag.Bool("json", false, "print summaries as JSON lines")
	)
	flag.Parse()

	files, err := persistlog.Files(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journal:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no journal files in", *dir)
		os.Exit(1)
	}

	s := newSummarizer(*only)
	for _, path := range files {
		if err := persistlog.ReadFile(path, s.add); err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, r := range s.summaries() {
			_ = enc.Encode(r)
		}
		return
	}
	for _, r := range s.summaries() {
		printSummary(os.Stdout, r, *top)
	}
}

func printSummary(w io.Writer, r *roundSummary, top int) {
	state := "in progress"
	if r.Complete {
		state = fmt.Sprintf("complete ticks=%d duration=%s", r.Ticks, r.Duration)
	}
	fmt.Fprintf(w, "round %d: %s\n", r.RoundID, state)
	fmt.Fprintf(w, "  samples=%d ticks=%d..%d max_players=%d max_connected=%d monsters=%d\n",
		r.Samples, r.FirstTick, r.LastTick, r.MaxPlayers, r.MaxConn, r.Monsters)
	fmt.Fprintf(w, "  actions=%d intents=%d step_ms avg=%.2f max=%.2f\n", r.Actions, r.Intents, r.AvgStepMS, r.MaxStepMS)
	for i, sc := range r.Scores {
		if i >= top {
			break
		}
		fmt.Fprintf(w, "  #%d %s (%d) score=%d\n", i+1, sc.Username, sc.UserID, sc.Score)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"roguecloud.io/internal/persistence/leaderboard"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "round":
			roundCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "top":
			topCmd(os.Args[2:])
			return
		}
	}
	topCmd(os.Args[1:])
}

func openStore(dataDir string) *leaderboard.Store {
	path := filepath.Join(dataDir, "leaderboard.db")
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "leaderboard:", err)
		os.Exit(1)
	}
	st, err := leaderboard.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return st
}

func topCmd(args []string) {
	fs := flag.NewFlagSet("top", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	limit := fs.Int("n", 10, "number of users")
	_ = fs.Parse(args)

	st := openStore(*dataDir)
	defer st.Close()
	rows, err := st.Top(context.Background(), *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	printStandings(os.Stdout, rows)
}

func printStandings(w io.Writer, rows []leaderboard.Standing) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tUSER\tTOTAL\tBEST\tROUNDS")
	for i, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n", i+1, r.Username, r.Total, r.Best, r.Rounds)
	}
	_ = tw.Flush()
}

func roundCmd(args []string) {
	fs := flag.NewFlagSet("round", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	id := fs.Int64("id", 0, "round id (default: last completed round)")
	_ = fs.Parse(args)

	st := openStore(*dataDir)
	defer st.Close()
	ctx := context.Background()
	roundID := *id
	if roundID == 0 {
		last, err := st.LastRoundID(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		if last == 0 {
			fmt.Fprintln(os.Stderr, "no completed rounds")
			os.Exit(1)
		}
		roundID = last
	}
	scores, err := st.RoundScores(ctx, roundID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	fmt.Printf("round %d\n", roundID)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tSCORE")
	for _, s := range scores {
		fmt.Fprintf(tw, "%s\t%d\n", s.Username, s.Score)
	}
	_ = tw.Flush()
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/state"
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

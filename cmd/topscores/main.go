package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kelvin0611/Mini-io-games/internal/env"
	"github.com/kelvin0611/Mini-io-games/store"
)

func main() {
	dataDir := flag.String("data-dir", env.OrDefault("DATA_DIR", "data"), "Comma-separated data directories holding rounds/")
	n := flag.Int("n", 10, "Number of rounds to list")
	source := flag.String("source", "", "Only rank rounds from this source (arena, selfplay, debug)")
	flag.Parse()

	lb, err := store.OpenLeaderboard(strings.Split(*dataDir, ",")...)
	if err != nil {
		log.Fatalf("Failed to open leaderboard: %v", err)
	}
	defer lb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := lb.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to query stats: %v", err)
	}
	top, err := lb.Top(ctx, *n, *source)
	if err != nil {
		log.Fatalf("Failed to query top rounds: %v", err)
	}

	fmt.Printf("%d rounds | best %d | avg score %.1f | avg ticks %.0f | wall deaths %d\n\n",
		st.Rounds, st.BestScore, st.AvgScore, st.AvgTicks, st.WallDeaths)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSCORE\tLEVEL\tTICKS\tKILLER\tSOURCE\tROUND")
	for i, e := range top {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\t%s\t%s\n", i+1, e.Score, e.Level, e.Ticks, e.Killer, e.Source, e.RoundID)
	}
	tw.Flush()
}

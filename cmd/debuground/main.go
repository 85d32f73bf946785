package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"github.com/kelvin0611/Mini-io-games/game"
	"github.com/kelvin0611/Mini-io-games/inference"
	"github.com/kelvin0611/Mini-io-games/session"
	"github.com/kelvin0611/Mini-io-games/steering"
	"github.com/kelvin0611/Mini-io-games/store"
)

func main() {
	seed := flag.Int64("seed", 1, "Round seed")
	maxTicks := flag.Int64("max-ticks", 3600, "End the round after this many ticks (0 = until the player dies)")
	outDir := flag.String("out-dir", "debug_rounds", "Output directory for the round and its frames")
	every := flag.Int("every", 1, "Keep every Nth tick as a frame")
	pathStride := flag.Int("path-stride", 1, "Keep every Nth trail point in frames")
	flag.Parse()

	if *every < 1 {
		*every = 1
	}

	printEvent := session.ListenerFunc(func(r *session.Round, ev game.Event) {
		switch ev.Kind {
		case game.BotSpawned:
			return
		case game.PlayerDied, game.RoundEnded:
			fmt.Printf("  Tick %5d | %-12s | score=%d killer=%s\n", ev.Tick, ev.Kind, ev.Score, ev.Killer)
		default:
			fmt.Printf("  Tick %5d | %-12s | %s score=%d\n", ev.Tick, ev.Kind, ev.Name, ev.Score)
		}
	})

	r, err := session.New(session.Options{
		Config:    game.DefaultConfig(),
		Seed:      *seed,
		MaxTicks:  *maxTicks,
		Listeners: []session.Listener{printEvent},
	})
	if err != nil {
		log.Fatalf("Failed to start round: %v", err)
	}
	log.Printf("Playing debug round %s (seed=%d)", r.ID, *seed)

	pilot := steering.NewAutopilot(r.Policy())
	frames := []store.FrameRow{store.NewFrameRow(r.ID, r.World, *pathStride)}
	for !r.Over() {
		if _, err := r.Step(pilot.Intent(r.World)); err != nil {
			log.Fatalf("Step failed: %v", err)
		}
		if r.World.Tick%int64(*every) == 0 || r.Over() {
			frames = append(frames, store.NewFrameRow(r.ID, r.World, *pathStride))
		}
		if r.World.Tick%600 == 0 {
			fmt.Printf("  Tick %5d | %2d bots | %4d food | score=%d\n", r.World.Tick, r.World.LivingBots(), len(r.World.Food), r.World.Player.Score)
		}
	}

	sum := r.Summary()
	framesPath := filepath.Join(*outDir, store.FramesDir, r.ID+".parquet")
	if err := store.WriteParquet(framesPath, store.FrameSchema, frames); err != nil {
		log.Fatalf("Failed to write frames: %v", err)
	}
	roundsPath, err := store.WriteRounds(*outDir, []store.RoundRow{store.NewRoundRow(sum, "debug", inference.PolicyHeuristic)})
	if err != nil {
		log.Fatalf("Failed to write round: %v", err)
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("  Round:   %s\n", sum.RoundID)
	fmt.Printf("  Ticks:   %d\n", sum.Ticks)
	fmt.Printf("  Score:   %d (xp=%d level=%d)\n", sum.Score, sum.XP, sum.Level)
	fmt.Printf("  Killer:  %s\n", sum.Killer)
	fmt.Printf("  Bots:    %d died\n", sum.BotDeaths)
	fmt.Printf("  Frames:  %d -> %s\n", len(frames), framesPath)
	fmt.Printf("  Summary: %s\n", roundsPath)
	fmt.Println("═══════════════════════════════════════════════════════════════")
}

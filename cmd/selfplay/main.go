package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kelvin0611/Mini-io-games/game"
	"github.com/kelvin0611/Mini-io-games/inference"
	"github.com/kelvin0611/Mini-io-games/internal/env"
	"github.com/kelvin0611/Mini-io-games/logging"
	"github.com/kelvin0611/Mini-io-games/session"
	"github.com/kelvin0611/Mini-io-games/steering"
	"github.com/kelvin0611/Mini-io-games/store"
)

var totalTicks atomic.Int64
var totalRounds atomic.Int64
var finishedRounds atomic.Int64

func main() {
	dataDir := flag.String("data-dir", env.OrDefault("DATA_DIR", filepath.Join("data", "selfplay")), "Output directory for round/frame parquet files")
	workers := flag.Int("workers", env.IntOrDefault("WORKERS", 8), "Number of concurrent rounds")
	maxRounds := flag.Int64("max-rounds", env.Int64OrDefault("MAX_ROUNDS", 0), "If > 0, stop after this many rounds (across all workers)")
	maxTicks := flag.Int64("max-ticks", env.Int64OrDefault("MAX_TICKS", 20000), "End a round after this many ticks (0 = until the player dies)")
	seed := flag.Int64("seed", env.Int64OrDefault("SEED", 0), "Base seed; round n uses seed+n. 0 seeds from the clock")
	bots := flag.Int("bots", env.IntOrDefault("BOT_COUNT", game.DefaultConfig().BotCount), "Bot population")
	food := flag.Int("food", env.IntOrDefault("MAX_FOOD", game.DefaultConfig().MaxFood), "Food population floor")
	frameEvery := flag.Int("frame-every", env.IntOrDefault("FRAME_EVERY", 10), "Record a frame every N ticks (0 = rounds only)")
	pathStride := flag.Int("path-stride", env.IntOrDefault("PATH_STRIDE", 2), "Keep every Nth trail point in frames")
	roundsPerFile := flag.Int("rounds-per-file", env.IntOrDefault("ROUNDS_PER_FILE", 50), "Rotate parquet files after this many rounds")
	scoreLogPath := flag.String("score-log", env.OrDefault("SCORE_LOG", ""), "Optional append-only score log")
	policyKind := flag.String("policy", env.OrDefault("POLICY", inference.PolicyHeuristic), "Bot policy: heuristic or onnx")
	modelPath := flag.String("model", env.OrDefault("MODEL", filepath.Join("models", "snek_policy.onnx")), "ONNX model for -policy onnx")
	onnxSessions := flag.Int("onnx-sessions", env.IntOrDefault("ONNX_SESSIONS", 1), "Number of ONNX Runtime sessions, each with its own batching loop")
	onnxBatchSize := flag.Int("onnx-batch-size", inference.DefaultBatchSize, "ONNX inference batch size")
	onnxBatchTimeout := flag.Duration("onnx-batch-timeout", inference.DefaultBatchTimeout, "Max time to wait for filling an ONNX batch")
	cuda := flag.Bool("cuda", env.BoolOrDefault("CUDA", false), "Enable CUDA for inference")
	noTUI := flag.Bool("no-tui", env.BoolOrDefault("NO_TUI", false), "Log progress lines instead of the dashboard")
	logFormat := flag.String("log-format", env.OrDefault("LOG_FORMAT", logging.FormatPretty), "Log format: pretty, json or text")
	flag.Parse()

	// The dashboard owns the terminal; library logs go to a file.
	logOut := io.Writer(os.Stderr)
	if !*noTUI {
		f, err := os.OpenFile("selfplay.log", os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer f.Close()
		logOut = f
		log.SetOutput(f)
	}
	if _, err := logging.Setup(logOut, *logFormat, "info"); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	cfg := game.DefaultConfig()
	cfg.BotCount = *bots
	cfg.MaxFood = *food
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid arena config: %v", err)
	}

	onnxCfg := inference.OnnxClientConfig{BatchSize: *onnxBatchSize, BatchTimeout: *onnxBatchTimeout, UseCUDA: *cuda}
	policy, policyCloser, err := inference.OpenPolicy(*policyKind, *modelPath, *onnxSessions, onnxCfg)
	if err != nil {
		log.Fatalf("Failed to load bot policy: %v", err)
	}
	defer policyCloser.Close()
	stats := func() (inference.RuntimeStats, bool) {
		if sp, ok := policyCloser.(interface{ Stats() inference.RuntimeStats }); ok {
			return sp.Stats(), true
		}
		return inference.RuntimeStats{}, false
	}

	policyName := *policyKind
	if policyName == inference.PolicyOnnx {
		if resolved, err := filepath.EvalSymlinks(*modelPath); err == nil {
			policyName = resolved
		} else {
			policyName = *modelPath
		}
	}
	rec, err := store.NewRecorder(store.RecorderConfig{
		DataDir:       *dataDir,
		Source:        "selfplay",
		Policy:        policyName,
		FrameEvery:    *frameEvery,
		PathStride:    *pathStride,
		RoundsPerFile: *roundsPerFile,
	})
	if err != nil {
		log.Fatalf("Failed to open recorder: %v", err)
	}
	listeners := []session.Listener{rec}
	if *scoreLogPath != "" {
		scores, err := store.OpenScoreLog(*scoreLogPath)
		if err != nil {
			log.Fatalf("Failed to open score log: %v", err)
		}
		defer scores.Close()
		listeners = append(listeners, scores)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	log.Printf("Starting self-play with %d workers (policy=%s)", *workers, *policyKind)

	updates := make(chan RoundUpdate, *workers)
	var workerWG sync.WaitGroup
	for i := 0; i < *workers; i++ {
		workerWG.Add(1)
		go func(workerID int) {
			defer workerWG.Done()
			for ctx.Err() == nil {
				n := totalRounds.Add(1)
				if *maxRounds > 0 && n > *maxRounds {
					cancel()
					return
				}
				var roundSeed int64
				if *seed != 0 {
					roundSeed = *seed + n
				}
				opts := session.Options{Config: cfg, Seed: roundSeed, Policy: policy, MaxTicks: *maxTicks, Listeners: listeners}
				sum, err := playRound(ctx, opts, rec)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						log.Printf("Worker %d: round failed: %v", workerID, err)
					}
					continue
				}
				finishedRounds.Add(1)
				select {
				case updates <- RoundUpdate{WorkerID: workerID, RoundID: sum.RoundID, Score: sum.Score, Ticks: sum.Ticks, Killer: sum.Killer, Level: sum.Level}:
				default:
				}
				if *maxRounds > 0 && n == *maxRounds {
					cancel()
				}
			}
		}(i)
	}

	if *noTUI {
		logProgress(ctx, updates, stats)
	} else {
		p := tea.NewProgram(initialModel(updates, stats), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			log.Printf("dashboard: %v", err)
		}
		cancel()
	}

	log.Printf("Shutdown requested; waiting for workers to finish current rounds...")
	workerWG.Wait()
	if err := rec.Close(); err != nil {
		log.Printf("Final parquet flush failed: %v", err)
	}
	for _, path := range rec.Written() {
		log.Printf("Wrote %s", path)
	}
	log.Printf("Shutdown complete (rounds=%d ticks=%d)", finishedRounds.Load(), totalTicks.Load())
}

// playRound drives one round with the player on autopilot.
func playRound(ctx context.Context, opts session.Options, rec *store.Recorder) (session.Summary, error) {
	r, err := session.New(opts)
	if err != nil {
		return session.Summary{}, err
	}
	pilot := steering.NewAutopilot(opts.Policy)
	for !r.Over() {
		if err := ctx.Err(); err != nil {
			return r.Summary(), err
		}
		if _, err := r.Step(pilot.Intent(r.World)); err != nil {
			return r.Summary(), err
		}
		totalTicks.Add(1)
		rec.Capture(r)
	}
	return r.Summary(), nil
}

func logProgress(ctx context.Context, updates <-chan RoundUpdate, stats func() (inference.RuntimeStats, bool)) {
	startTime := time.Now()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			log.Printf("Worker %d: round %s score=%d level=%d ticks=%d killer=%s", u.WorkerID, u.RoundID, u.Score, u.Level, u.Ticks, u.Killer)
		case <-ticker.C:
			secs := time.Since(startTime).Seconds()
			ticksPerSec := float64(totalTicks.Load()) / secs
			if st, ok := stats(); ok {
				log.Printf("Stats: Ticks/s: %.0f | batch avg=%.1f last=%d q=%d run avg=%.2fms", ticksPerSec, st.AvgBatchSize, st.LastBatchSize, st.QueueLen, st.AvgRunMs)
			} else {
				log.Printf("Stats: Ticks/s: %.0f", ticksPerSec)
			}
		}
	}
}

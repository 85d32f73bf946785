package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kelvin0611/Mini-io-games/game"
	"github.com/kelvin0611/Mini-io-games/inference"
	"github.com/kelvin0611/Mini-io-games/internal/env"
	"github.com/kelvin0611/Mini-io-games/logging"
	"github.com/kelvin0611/Mini-io-games/server"
	"github.com/kelvin0611/Mini-io-games/session"
	"github.com/kelvin0611/Mini-io-games/store"
)

func main() {
	addr := flag.String("addr", env.OrDefault("ADDR", ":8080"), "HTTP listen address (websocket at /ws)")
	seed := flag.Int64("seed", env.Int64OrDefault("SEED", 0), "Round seed; 0 picks one from the clock")
	tick := flag.Duration("tick", env.DurationOrDefault("TICK", server.DefaultTickInterval), "Simulation tick interval")
	mapSize := flag.Float64("map-size", env.FloatOrDefault("MAP_SIZE", game.DefaultConfig().MapSize), "Arena side length")
	bots := flag.Int("bots", env.IntOrDefault("BOT_COUNT", game.DefaultConfig().BotCount), "Bot population")
	food := flag.Int("food", env.IntOrDefault("MAX_FOOD", game.DefaultConfig().MaxFood), "Food population floor")
	pathStride := flag.Int("path-stride", env.IntOrDefault("PATH_STRIDE", server.DefaultPathStride), "Send every Nth trail point to clients")
	dataDir := flag.String("data-dir", env.OrDefault("DATA_DIR", "data"), "Directory for round parquet files; empty disables recording")
	frameEvery := flag.Int("frame-every", env.IntOrDefault("FRAME_EVERY", 0), "Record a frame every N ticks (0 = rounds only)")
	roundsPerFile := flag.Int("rounds-per-file", env.IntOrDefault("ROUNDS_PER_FILE", 1), "Flush parquet files after this many rounds")
	scoreLogPath := flag.String("score-log", env.OrDefault("SCORE_LOG", filepath.Join("data", "scores.log")), "Append-only score log; empty disables")
	policyKind := flag.String("policy", env.OrDefault("POLICY", inference.PolicyHeuristic), "Bot policy: heuristic or onnx")
	modelPath := flag.String("model", env.OrDefault("MODEL", filepath.Join("models", "snek_policy.onnx")), "ONNX model for -policy onnx")
	cuda := flag.Bool("cuda", env.BoolOrDefault("CUDA", false), "Enable CUDA for inference")
	logFormat := flag.String("log-format", env.OrDefault("LOG_FORMAT", logging.FormatPretty), "Log format: pretty, json or text")
	logLevel := flag.String("log-level", env.OrDefault("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	logger, err := logging.Setup(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	cfg := game.DefaultConfig()
	cfg.MapSize = *mapSize
	cfg.BotCount = *bots
	cfg.MaxFood = *food
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid arena config: %v", err)
	}

	policy, policyCloser, err := inference.OpenPolicy(*policyKind, *modelPath, 1, inference.OnnxClientConfig{FlushIdle: true, UseCUDA: *cuda})
	if err != nil {
		log.Fatalf("Failed to load bot policy: %v", err)
	}
	defer policyCloser.Close()

	var listeners []session.Listener
	if *scoreLogPath != "" {
		scores, err := store.OpenScoreLog(*scoreLogPath)
		if err != nil {
			log.Fatalf("Failed to open score log: %v", err)
		}
		defer scores.Close()
		logger.Info("score log opened", "path", *scoreLogPath, "rounds", scores.Count())
		listeners = append(listeners, scores)
	}

	var rec *store.Recorder
	if *dataDir != "" {
		policyName := *policyKind
		if policyName == inference.PolicyOnnx {
			policyName = *modelPath
		}
		rec, err = store.NewRecorder(store.RecorderConfig{
			DataDir:       *dataDir,
			Source:        "arena",
			Policy:        policyName,
			FrameEvery:    *frameEvery,
			PathStride:    *pathStride,
			RoundsPerFile: *roundsPerFile,
		})
		if err != nil {
			log.Fatalf("Failed to open recorder: %v", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Error("recorder close failed", "error", err)
			}
		}()
		listeners = append(listeners, rec)
	}

	hubCfg := server.Config{
		Session:      session.Options{Config: cfg, Seed: *seed, Policy: policy, Listeners: listeners},
		TickInterval: *tick,
		PathStride:   *pathStride,
		Logger:       logger,
	}
	if rec != nil {
		hubCfg.OnTick = rec.Capture
	}
	hub, err := server.NewHub(hubCfg)
	if err != nil {
		log.Fatalf("Failed to start round: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: *addr, Handler: hub.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("hub stopped", "error", err)
		}
	}()

	logger.Info("arena listening", "addr", *addr, "policy", *policyKind, "bots", cfg.BotCount, "food", cfg.MaxFood, "round", hub.RoundID())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server failed: %v", err)
	}

	sum := hub.Summary()
	logger.Info("arena stopped", "round", sum.RoundID, "score", sum.Score, "ticks", sum.Ticks)
}

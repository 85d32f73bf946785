// Package store archives rounds to disk: parquet files of round summaries and
// per-tick frames, an append-only score log, and DuckDB queries over the
// archive.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/kelvin0611/Mini-io-games/game"
	"github.com/kelvin0611/Mini-io-games/session"
)

// ErrClosed is returned by writers and logs used after Close.
var ErrClosed = errors.New("store: closed")

const (
	RoundSchema = "round_v1"
	FrameSchema = "frame_v1"

	RoundsDir = "rounds"
	FramesDir = "frames"
)

// RoundRow is one finished round.
type RoundRow struct {
	RoundID   string `parquet:"round_id,dict"`
	Seed      int64  `parquet:"seed"`
	Ticks     int64  `parquet:"ticks"`
	Score     int32  `parquet:"score"`
	Killer    string `parquet:"killer,dict"`
	XP        int32  `parquet:"xp"`
	Level     int32  `parquet:"level"`
	BotDeaths int32  `parquet:"bot_deaths"`
	StartedAt int64  `parquet:"started_at_ms"`
	EndedAt   int64  `parquet:"ended_at_ms"`
	Source    string `parquet:"source,dict"`

	// Policy names the bot policy, e.g. "heuristic" or a model path.
	Policy string `parquet:"policy,dict,optional"`
}

// FrameRow is a snapshot of one tick of one round.
//
// Food and snake trails are stored as parallel coordinate columns, which
// compress far better than nested point structs.
type FrameRow struct {
	RoundID string `parquet:"round_id,dict"`
	Tick    int64  `parquet:"tick"`
	Phase   string `parquet:"phase,dict"`

	FoodX     []float32 `parquet:"food_x"`
	FoodY     []float32 `parquet:"food_y"`
	FoodValue []int32   `parquet:"food_value"`

	Snakes []FrameSnake `parquet:"snakes"`
}

type FrameSnake struct {
	ID      int64   `parquet:"id"`
	Name    string  `parquet:"name,dict"`
	Player  bool    `parquet:"player"`
	Dead    bool    `parquet:"dead"`
	Score   int32   `parquet:"score"`
	Heading float32 `parquet:"heading"`
	Boost   bool    `parquet:"boost"`

	PathX []float32 `parquet:"path_x"`
	PathY []float32 `parquet:"path_y"`
}

// NewRoundRow converts a round summary.
func NewRoundRow(sum session.Summary, source, policy string) RoundRow {
	return RoundRow{
		RoundID:   sum.RoundID,
		Seed:      sum.Seed,
		Ticks:     sum.Ticks,
		Score:     int32(sum.Score),
		Killer:    sum.Killer,
		XP:        int32(sum.XP),
		Level:     int32(sum.Level),
		BotDeaths: int32(sum.BotDeaths),
		StartedAt: unixMilli(sum.StartedAt),
		EndedAt:   unixMilli(sum.EndedAt),
		Source:    source,
		Policy:    policy,
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// NewFrameRow captures the world. Trails keep every pathStride-th point.
func NewFrameRow(roundID string, w *game.World, pathStride int) FrameRow {
	if pathStride < 1 {
		pathStride = 1
	}
	row := FrameRow{
		RoundID:   roundID,
		Tick:      w.Tick,
		Phase:     w.Phase.String(),
		FoodX:     make([]float32, len(w.Food)),
		FoodY:     make([]float32, len(w.Food)),
		FoodValue: make([]int32, len(w.Food)),
	}
	for i, f := range w.Food {
		row.FoodX[i] = float32(f.Pos.X)
		row.FoodY[i] = float32(f.Pos.Y)
		row.FoodValue[i] = int32(f.Value)
	}
	for _, s := range w.Snakes() {
		if s.Dead && !s.IsPlayer() {
			continue
		}
		fs := FrameSnake{
			ID:      int64(s.ID),
			Name:    s.Name,
			Player:  s.IsPlayer(),
			Dead:    s.Dead,
			Score:   int32(s.Score),
			Heading: float32(s.Heading),
			Boost:   s.Boost,
		}
		for i := 0; i < len(s.Path); i += pathStride {
			fs.PathX = append(fs.PathX, float32(s.Path[i].X))
			fs.PathY = append(fs.PathY, float32(s.Path[i].Y))
		}
		row.Snakes = append(row.Snakes, fs)
	}
	return row
}

func writerOptions(schema string) []parquet.WriterOption {
	return []parquet.WriterOption{
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schema),
	}
}

// WriteParquet writes rows to outPath via a temp file and rename.
func WriteParquet[T any](outPath, schema string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows, writerOptions(schema)...); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// WriteRounds writes a batch of round rows into dataDir/rounds and returns
// the final path. Readers never observe a partial file.
func WriteRounds(dataDir string, rows []RoundRow) (string, error) {
	name := fmt.Sprintf("rounds_%d.parquet", time.Now().UnixNano())
	outPath := filepath.Join(dataDir, RoundsDir, name)
	if err := WriteParquet(outPath, RoundSchema, rows); err != nil {
		return "", err
	}
	return outPath, nil
}

// ReadRounds loads every row of a round parquet file.
func ReadRounds(path string) ([]RoundRow, error) {
	rows, err := parquet.ReadFile[RoundRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// ReadFrames loads every row of a frame parquet file.
func ReadFrames(path string) ([]FrameRow, error) {
	rows, err := parquet.ReadFile[FrameRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

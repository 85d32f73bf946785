package store

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/kelvin0611/Mini-io-games/game"
	"github.com/kelvin0611/Mini-io-games/session"
)

type RecorderConfig struct {
	DataDir string
	Source  string
	Policy  string

	// FrameEvery captures a frame every N ticks; 0 disables frames.
	FrameEvery int
	PathStride int
	// RoundsPerFile rotates the parquet files after that many rounds; 0 never rotates.
	RoundsPerFile int
}

// Recorder archives rounds as parquet. It is a session.Listener for round
// ends; drivers call Capture after each tick to record frames. Safe for use
// by several rounds at once.
type Recorder struct {
	mu     sync.Mutex
	cfg    RecorderConfig
	rounds *BatchWriter[RoundRow]
	frames *BatchWriter[FrameRow]

	written []string
	closed  bool
	lastErr error
}

func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data dir is required")
	}
	if cfg.PathStride < 1 {
		cfg.PathStride = 1
	}
	r := &Recorder{cfg: cfg}
	if err := r.openLocked(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) openLocked() error {
	rounds, err := NewBatchWriter[RoundRow](filepath.Join(r.cfg.DataDir, RoundsDir), "rounds", RoundSchema)
	if err != nil {
		return err
	}
	r.rounds = rounds
	if r.cfg.FrameEvery > 0 {
		frames, err := NewBatchWriter[FrameRow](filepath.Join(r.cfg.DataDir, FramesDir), "frames", FrameSchema)
		if err != nil {
			_, _, _, _ = rounds.Finalize()
			return err
		}
		r.frames = frames
	}
	return nil
}

func (r *Recorder) finalizeLocked() error {
	var errs []error
	for _, fin := range []func() (string, int, int, error){r.finalizeRounds, r.finalizeFrames} {
		path, rows, rounds, err := fin()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if path != "" {
			r.written = append(r.written, path)
			slog.Info("parquet written", "path", path, "rows", rows, "rounds", rounds)
		}
	}
	r.rounds, r.frames = nil, nil
	return errors.Join(errs...)
}

func (r *Recorder) finalizeRounds() (string, int, int, error) {
	if r.rounds == nil {
		return "", 0, 0, nil
	}
	return r.rounds.Finalize()
}

func (r *Recorder) finalizeFrames() (string, int, int, error) {
	if r.frames == nil {
		return "", 0, 0, nil
	}
	return r.frames.Finalize()
}

// Capture records the current tick of round if it falls on the frame cadence.
func (r *Recorder) Capture(round *session.Round) {
	if r.cfg.FrameEvery <= 0 || round.World.Tick%int64(r.cfg.FrameEvery) != 0 {
		return
	}
	row := NewFrameRow(round.ID, round.World, r.cfg.PathStride)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeFrameLocked(row)
}

func (r *Recorder) writeFrameLocked(row FrameRow) {
	if r.closed || r.frames == nil {
		return
	}
	if err := r.frames.WriteRows([]FrameRow{row}); err != nil {
		r.fail("write frame", err)
	}
}

// OnEvent writes the round summary (and a final frame) when a round ends.
func (r *Recorder) OnEvent(round *session.Round, ev game.Event) {
	if ev.Kind != game.RoundEnded {
		return
	}
	row := NewRoundRow(round.Summary(), r.cfg.Source, r.cfg.Policy)
	var frame *FrameRow
	if r.cfg.FrameEvery > 0 && round.World.Tick%int64(r.cfg.FrameEvery) != 0 {
		f := NewFrameRow(round.ID, round.World, r.cfg.PathStride)
		frame = &f
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if frame != nil {
		r.writeFrameLocked(*frame)
	}
	if err := r.rounds.WriteRows([]RoundRow{row}); err != nil {
		r.fail("write round", err)
		return
	}
	r.rounds.NoteRoundWritten()
	if r.frames != nil {
		r.frames.NoteRoundWritten()
	}

	if r.cfg.RoundsPerFile > 0 && r.rounds.BufferedRounds() >= r.cfg.RoundsPerFile {
		if err := r.finalizeLocked(); err != nil {
			r.fail("rotate", err)
		}
		if err := r.openLocked(); err != nil {
			r.fail("reopen", err)
			r.closed = true
		}
	}
}

func (r *Recorder) fail(op string, err error) {
	r.lastErr = fmt.Errorf("%s: %w", op, err)
	slog.Error("recorder error", "op", op, "error", err)
}

// Err returns the most recent write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Written lists the parquet files finalized so far.
func (r *Recorder) Written() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.written...)
}

// Close finalizes any open files. Further events are ignored.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.finalizeLocked()
}

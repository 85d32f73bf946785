package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kelvin0611/Mini-io-games/game"
	"github.com/kelvin0611/Mini-io-games/session"
)

func TestNewFrameRow(t *testing.T) {
	cfg := game.DefaultConfig()
	cfg.BotCount = 2
	cfg.MaxFood = 5
	w, err := game.NewWorld(cfg, 42)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	w.Bots[1].Dead = true

	row := NewFrameRow("r1", w, 4)
	if row.RoundID != "r1" || row.Phase != "playing" {
		t.Fatalf("row header=%+v", row)
	}
	if len(row.FoodX) != 5 || len(row.FoodY) != 5 || len(row.FoodValue) != 5 {
		t.Fatalf("food columns=%d/%d/%d", len(row.FoodX), len(row.FoodY), len(row.FoodValue))
	}
	if len(row.Snakes) != 2 || !row.Snakes[0].Player || row.Snakes[1].Name != "Bot 1" {
		t.Fatalf("snakes=%+v", row.Snakes)
	}
	// 30 start points every 4th -> indices 0,4,...,28.
	if n := len(row.Snakes[0].PathX); n != 8 {
		t.Fatalf("player path points=%d want 8", n)
	}
}

func TestWriteAndReadRounds(t *testing.T) {
	dir := t.TempDir()
	start := time.UnixMilli(1_700_000_000_000)
	rows := []RoundRow{
		NewRoundRow(session.Summary{RoundID: "a", Seed: 1, Ticks: 100, Score: 40, Killer: "Bot 3", XP: 200, Level: 2, StartedAt: start, EndedAt: start.Add(time.Second)}, "arena", ""),
		NewRoundRow(session.Summary{RoundID: "b", Seed: 2, Ticks: 50, Score: 12, Killer: game.KillerWall, XP: 60, Level: 1}, "selfplay", "heuristic"),
	}
	path, err := WriteRounds(dir, rows)
	if err != nil {
		t.Fatalf("WriteRounds: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(dir, RoundsDir) {
		t.Fatalf("path=%s", path)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	got, err := ReadRounds(path)
	if err != nil {
		t.Fatalf("ReadRounds: %v", err)
	}
	if len(got) != 2 || got[0] != rows[0] || got[1] != rows[1] {
		t.Fatalf("got=%+v want=%+v", got, rows)
	}
	if got[0].EndedAt-got[0].StartedAt != 1000 || got[1].StartedAt != 0 {
		t.Fatalf("timestamps=%+v", got)
	}
}

func TestBatchWriter(t *testing.T) {
	dir := t.TempDir()
	bw, err := NewBatchWriter[RoundRow](dir, "rounds", RoundSchema)
	if err != nil {
		t.Fatalf("NewBatchWriter: %v", err)
	}
	if err := bw.WriteRows([]RoundRow{{RoundID: "x", Score: 9}}); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	bw.NoteRoundWritten()
	if _, err := os.Stat(bw.OutPath()); !os.IsNotExist(err) {
		t.Fatalf("final file visible before Finalize")
	}

	out, rows, rounds, err := bw.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if out != bw.OutPath() || rows != 1 || rounds != 1 {
		t.Fatalf("out=%s rows=%d rounds=%d", out, rows, rounds)
	}
	if _, err := os.Stat(bw.TmpPath()); !os.IsNotExist(err) {
		t.Fatalf("tmp file still present")
	}
	if err := bw.WriteRows([]RoundRow{{RoundID: "y"}}); !errors.Is(err, ErrClosed) {
		t.Fatalf("write after finalize err=%v want ErrClosed", err)
	}

	empty, err := NewBatchWriter[FrameRow](dir, "frames", FrameSchema)
	if err != nil {
		t.Fatalf("NewBatchWriter: %v", err)
	}
	out, _, _, err = empty.Finalize()
	if err != nil || out != "" {
		t.Fatalf("empty finalize out=%q err=%v", out, err)
	}
	if _, err := os.Stat(empty.TmpPath()); !os.IsNotExist(err) {
		t.Fatalf("empty tmp file not removed")
	}
}

func TestScoreLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scores.log")
	l, err := OpenScoreLog(path)
	if err != nil {
		t.Fatalf("OpenScoreLog: %v", err)
	}
	for _, e := range []ScoreEntry{
		{RoundID: "r1", Score: 10, Killer: "Bot 1"},
		{RoundID: "r2", Score: 55, Killer: "wall"},
		{RoundID: "r1", Score: 99, Killer: "dup"},
		{RoundID: "r3", Score: 55, Killer: "tab\there"},
	} {
		if err := l.Add(e); err != nil {
			t.Fatalf("Add(%+v): %v", e, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Add(ScoreEntry{RoundID: "r4"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v want ErrClosed", err)
	}

	// Simulate a torn final write.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = f.WriteString("r5\t12")
	_ = f.Close()

	l, err = OpenScoreLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	if l.Count() != 3 || !l.Has("r1") || l.Has("r5") {
		t.Fatalf("count=%d has r1=%v has r5=%v", l.Count(), l.Has("r1"), l.Has("r5"))
	}
	top := l.Top(2)
	if len(top) != 2 || top[0].RoundID != "r2" || top[1].RoundID != "r3" || top[1].Killer != "tab here" {
		t.Fatalf("top=%+v", top)
	}
}

func runRound(t *testing.T, seed int64, listeners ...session.Listener) *session.Round {
	t.Helper()
	cfg := game.DefaultConfig()
	cfg.BotCount = 3
	cfg.MaxFood = 50
	r, err := session.New(session.Options{Config: cfg, Seed: seed, MaxTicks: 12, Listeners: listeners})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return r
}

func TestRecorder(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(RecorderConfig{DataDir: dir, Source: "test", Policy: "heuristic", FrameEvery: 5, PathStride: 2})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	scores, err := OpenScoreLog(filepath.Join(dir, "scores.log"))
	if err != nil {
		t.Fatalf("OpenScoreLog: %v", err)
	}
	defer scores.Close()

	r := runRound(t, 8, rec, scores)
	for !r.Over() {
		if _, err := r.Step(game.HoldIntent(r.World.Player.Heading)); err != nil {
			t.Fatalf("Step: %v", err)
		}
		rec.Capture(r)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rec.Err(); err != nil {
		t.Fatalf("recorder error: %v", err)
	}

	written := rec.Written()
	if len(written) != 2 {
		t.Fatalf("written=%v want rounds and frames files", written)
	}
	rounds, err := ReadRounds(written[0])
	if err != nil {
		t.Fatalf("ReadRounds: %v", err)
	}
	if len(rounds) != 1 || rounds[0].RoundID != r.ID || rounds[0].Source != "test" || rounds[0].Ticks != r.World.Tick {
		t.Fatalf("rounds=%+v", rounds)
	}
	frames, err := ReadFrames(written[1])
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	// Every 5th tick, plus the final tick when it is off cadence.
	var want []int64
	for tick := int64(5); tick <= r.World.Tick; tick += 5 {
		want = append(want, tick)
	}
	if r.World.Tick%5 != 0 {
		want = append(want, r.World.Tick)
	}
	got := frameTicks(frames)
	if len(got) != len(want) {
		t.Fatalf("frame ticks=%v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame ticks=%v want %v", got, want)
		}
	}
	t.Logf("round %s ended at tick %d with %d frames", r.ID, r.World.Tick, len(frames))
	if !scores.Has(r.ID) {
		t.Fatalf("score log missed round %s", r.ID)
	}
}

func frameTicks(frames []FrameRow) []int64 {
	out := make([]int64, len(frames))
	for i, f := range frames {
		out[i] = f.Tick
	}
	return out
}

func TestLeaderboard(t *testing.T) {
	if testing.Short() {
		t.Skip("duckdb in short mode")
	}
	dir := t.TempDir()
	if _, err := WriteRounds(dir, []RoundRow{
		{RoundID: "a", Score: 30, Ticks: 400, Killer: "Bot 2", Source: "arena", Level: 1},
		{RoundID: "b", Score: 80, Ticks: 900, Killer: "wall", Source: "selfplay", Level: 2},
		{RoundID: "c", Score: 80, Ticks: 700, Killer: "Bot 1", Source: "arena", Level: 2},
	}); err != nil {
		t.Fatalf("WriteRounds: %v", err)
	}

	lb, err := OpenLeaderboard(dir)
	if err != nil {
		t.Fatalf("OpenLeaderboard: %v", err)
	}
	defer lb.Close()

	ctx := context.Background()
	top, err := lb.Top(ctx, 2, "")
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 2 || top[0].RoundID != "c" || top[1].RoundID != "b" {
		t.Fatalf("top=%+v", top)
	}
	arena, err := lb.Top(ctx, 10, "arena")
	if err != nil {
		t.Fatalf("Top arena: %v", err)
	}
	if len(arena) != 2 || arena[1].RoundID != "a" {
		t.Fatalf("arena=%+v", arena)
	}

	st, err := lb.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Rounds != 3 || st.BestScore != 80 || st.WallDeaths != 1 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestLeaderboard_Empty(t *testing.T) {
	if testing.Short() {
		t.Skip("duckdb in short mode")
	}
	lb, err := OpenLeaderboard(t.TempDir())
	if err != nil {
		t.Fatalf("OpenLeaderboard: %v", err)
	}
	defer lb.Close()
	st, err := lb.Stats(context.Background())
	if err != nil || st.Rounds != 0 {
		t.Fatalf("stats=%+v err=%v", st, err)
	}
}

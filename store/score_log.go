package store

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kelvin0611/Mini-io-games/game"
	"github.com/kelvin0611/Mini-io-games/session"
)

// ScoreEntry is one line of the score log.
type ScoreEntry struct {
	RoundID string
	Score   int
	Killer  string
}

// ScoreLog records finished rounds in an append-only text file, one
// tab-separated entry per line, fsynced after every append. Round ids are
// deduplicated so replaying a round's end is harmless.
//
// Malformed lines (e.g. a partial write before a crash) are skipped on load.
//
// Format: <round_id>\t<score>\t<killer>\n
type ScoreLog struct {
	mu      sync.RWMutex
	path    string
	file    *os.File
	entries map[string]ScoreEntry
}

func OpenScoreLog(path string) (*ScoreLog, error) {
	if path == "" {
		return nil, fmt.Errorf("log path is required")
	}

	entries := make(map[string]ScoreEntry)
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if e, ok := parseScoreLine(scanner.Text()); ok {
				entries[e.RoundID] = e
			}
		}
		_ = f.Close()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &ScoreLog{path: path, file: file, entries: entries}, nil
}

func parseScoreLine(line string) (ScoreEntry, bool) {
	parts := strings.Split(strings.TrimRight(line, "\r"), "\t")
	if len(parts) != 3 || parts[0] == "" {
		return ScoreEntry{}, false
	}
	score, err := strconv.Atoi(parts[1])
	if err != nil {
		return ScoreEntry{}, false
	}
	return ScoreEntry{RoundID: parts[0], Score: score, Killer: parts[2]}, true
}

func (l *ScoreLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *ScoreLog) Has(roundID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[roundID]
	return ok
}

func (l *ScoreLog) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Add appends e unless its round id is already logged.
func (l *ScoreLog) Add(e ScoreEntry) error {
	if e.RoundID == "" {
		return fmt.Errorf("round id is empty")
	}
	killer := strings.NewReplacer("\t", " ", "\n", " ").Replace(e.Killer)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[e.RoundID]; ok {
		return nil
	}
	if l.file == nil {
		return ErrClosed
	}

	line := e.RoundID + "\t" + strconv.Itoa(e.Score) + "\t" + killer + "\n"
	if _, err := l.file.WriteString(line); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}

	e.Killer = killer
	l.entries[e.RoundID] = e
	return nil
}

// Top returns the n best entries, highest score first. Ties are broken by
// round id for a stable order.
func (l *ScoreLog) Top(n int) []ScoreEntry {
	l.mu.RLock()
	out := make([]ScoreEntry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].RoundID < out[j].RoundID
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// OnEvent logs the round when it ends.
func (l *ScoreLog) OnEvent(r *session.Round, ev game.Event) {
	if ev.Kind != game.RoundEnded {
		return
	}
	sum := r.Summary()
	if err := l.Add(ScoreEntry{RoundID: sum.RoundID, Score: sum.Score, Killer: sum.Killer}); err != nil {
		slog.Error("score log append failed", "round", sum.RoundID, "error", err)
	}
}

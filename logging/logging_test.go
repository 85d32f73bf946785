package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.With("round", "r1").WithGroup("tick").Info("player died",
		"score", 42,
		"killer", "Bot 3",
		"error", errors.New("boom"),
		slog.Group("pos", "x", 1.5, "y", -2.0),
	)

	out := buf.String()
	if !strings.HasSuffix(out, "}\n") || !strings.Contains(out, "\n  \"level\"") {
		t.Fatalf("output not indented one object per record:\n%s", out)
	}
	if strings.Index(out, `"time"`) > strings.Index(out, `"msg"`) {
		t.Fatalf("time should come before msg:\n%s", out)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if got["msg"] != "player died" || got["level"] != "INFO" {
		t.Fatalf("got=%v", got)
	}
	tick, ok := got["tick"].(map[string]any)
	if !ok {
		t.Fatalf("missing tick group: %v", got)
	}
	if got["round"] != "r1" {
		t.Fatalf("attrs added before the group belong at the top level: %v", got)
	}
	if tick["score"] != float64(42) || tick["error"] != "boom" {
		t.Fatalf("tick group=%v", tick)
	}
	if pos, ok := tick["pos"].(map[string]any); !ok || pos["x"] != 1.5 {
		t.Fatalf("pos group=%v", tick["pos"])
	}
}

func TestPrettyJSONHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyJSONHandler(&buf, nil))
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %s", buf.String())
	}
}

func TestNewHandler(t *testing.T) {
	for _, format := range []string{"", FormatPretty, FormatJSON, FormatText} {
		if _, err := NewHandler(&bytes.Buffer{}, format, slog.LevelInfo); err != nil {
			t.Fatalf("format %q: %v", format, err)
		}
	}
	if _, err := NewHandler(&bytes.Buffer{}, "xml", slog.LevelInfo); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if lvl, err := ParseLevel("WARNING"); err != nil || lvl != slog.LevelWarn {
		t.Fatalf("ParseLevel=%v %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

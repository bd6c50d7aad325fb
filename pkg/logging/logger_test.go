package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLogger(newLogger(&buf, slog.LevelInfo, "json"), "session")
	logger.Info("session_started", slog.String("session_id", "s-1"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["component"] != "session" {
		t.Fatalf("expected component attr, got %v", payload["component"])
	}
	if payload["msg"] != "session_started" {
		t.Fatalf("unexpected msg %v", payload["msg"])
	}
}

func TestTextLoggerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, slog.LevelWarn, "text")
	logger.Info("hidden_event")
	logger.Warn("visible_event")
	out := buf.String()
	if strings.Contains(out, "hidden_event") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "visible_event") {
		t.Fatalf("warn line missing: %q", out)
	}
}

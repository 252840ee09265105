package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"journalrag/config"
)

func TestNewWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "journalrag.log")
	var out bytes.Buffer

	logger, err := New(config.LoggingConfig{Level: "info", Format: "text", File: logPath}, &out)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	logger.Info("ingested chunks", "count", 2)
	logger.Debug("hidden")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, content := range []string{out.String(), string(data)} {
		if !strings.Contains(content, "ingested chunks") || !strings.Contains(content, "count=2") {
			t.Fatalf("expected info line, got: %s", content)
		}
		if strings.Contains(content, "hidden") {
			t.Fatalf("debug line should be filtered, got: %s", content)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var out bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "debug", Format: "json"}, &out)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	logger.Debug("search", "k", 5)

	var line map[string]any
	if err := json.Unmarshal(out.Bytes(), &line); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", out.String(), err)
	}
	if line["msg"] != "search" || line["k"] != float64(5) {
		t.Fatalf("unexpected record: %v", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(config.LoggingConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

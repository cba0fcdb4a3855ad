package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")

	l.Info("hidden")
	l.Warn("shown", "page", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "page=2") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestNewUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "chatty")
	l.Debug("debug line")
	l.Info("info line")
	if strings.Contains(buf.String(), "debug line") {
		t.Error("debug should be filtered at default info level")
	}
	if !strings.Contains(buf.String(), "info line") {
		t.Error("info line missing")
	}
}

func TestInitWritesFile(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir, "debug"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("feed ready", "items", 17)
	Close()
	Logger = nil

	matches, _ := filepath.Glob(filepath.Join(dir, "cineswipe-*.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one log file, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "feed ready") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestHelpersWithoutInit(t *testing.T) {
	Logger = nil
	// Must not panic.
	Info("x")
	Warn("x")
	if WithPrefix("stream") == nil {
		t.Error("WithPrefix returned nil")
	}
	if OrDiscard(nil) == nil {
		t.Error("OrDiscard returned nil")
	}
}

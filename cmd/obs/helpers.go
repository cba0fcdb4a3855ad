package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/abelbrown/cineswipe/internal/config"
	"github.com/abelbrown/cineswipe/internal/logging"
	"github.com/abelbrown/cineswipe/internal/otel"
	"github.com/abelbrown/cineswipe/internal/prefs"
)

// loadConfig loads the client config or fatals.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// eventLogPath returns the path to cineswipe.events.jsonl.
func eventLogPath(cfg *config.Config) string {
	dir := cfg.Log.Dir
	if dir == "" {
		dir = logging.DefaultDir()
	}
	return filepath.Join(dir, otel.EventsFile)
}

// openEventLog opens the event log or exits with a hint.
func openEventLog(cfg *config.Config) *os.File {
	path := eventLogPath(cfg)
	f, err := os.Open(path)
	if err != nil {
		log.Printf("error: %v", err)
		log.Printf("  Event log not found at %s", path)
		log.Fatalf("  Run cineswipe with log.events enabled (CINESWIPE_LOG__EVENTS=true) first.")
	}
	return f
}

// openPrefs opens the preference store or fatals.
func openPrefs(cfg *config.Config) *prefs.Store {
	st, err := prefs.Open(cfg.Client.PrefsPath)
	if err != nil {
		log.Fatalf("failed to open preferences: %v", err)
	}
	return st
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

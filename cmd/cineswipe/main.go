// Command cineswipe is the terminal trailer feed.
//
// Configuration comes from ~/.cineswipe/config.yaml (or $CINESWIPE_CONFIG)
// and CINESWIPE_* environment variables. In stream and paged mode it talks
// to cineswipe-server; in direct mode it queries TMDB itself and needs
// TMDB_TOKEN.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/abelbrown/cineswipe/internal/assemble"
	"github.com/abelbrown/cineswipe/internal/config"
	"github.com/abelbrown/cineswipe/internal/engine"
	"github.com/abelbrown/cineswipe/internal/feed"
	"github.com/abelbrown/cineswipe/internal/logging"
	"github.com/abelbrown/cineswipe/internal/otel"
	"github.com/abelbrown/cineswipe/internal/prefs"
	"github.com/abelbrown/cineswipe/internal/provider"
	"github.com/abelbrown/cineswipe/internal/stream"
	"github.com/abelbrown/cineswipe/internal/ui"
)

const ringSize = 512

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("Failed to load config: %v", err)
	}
	cfg.AutoPopulateFromEnv()
	if err := cfg.Validate(); err != nil {
		fatal("Invalid config: %v", err)
	}

	if err := logging.Init(cfg.Log.Dir, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	defer logging.Close()
	logger := logging.Logger

	// The ring feeds the debug overlay whether or not events hit disk.
	ring := otel.NewRingBuffer(ringSize)
	events := openEvents(cfg)
	events.SetRingBuffer(ring)
	defer events.Close()
	events.Info(otel.KindStartup, "main", "client "+cfg.Client.Mode)

	store, err := prefs.Open(cfg.Client.PrefsPath)
	if err != nil {
		fatal("Failed to open preferences: %v", err)
	}
	defer store.Close()

	muted, err := store.Muted()
	if err != nil {
		logging.Warn("Failed to read mute preference", "error", err)
	}
	ct, err := store.ContentType(cfg.ContentType())
	if err != nil {
		logging.Warn("Failed to read content type preference", "error", err)
	}

	newSource, err := sourceFor(cfg, logger, events)
	if err != nil {
		fatal("%v", err)
	}

	scroll := ui.NewScroll()
	eng := engine.New(newSource, engine.Options{
		ContentType:   ct,
		Threshold:     cfg.Client.Threshold,
		Debounce:      cfg.Client.Debounce,
		NearEndOffset: cfg.Client.NearEndOffset,
		Scroller:      scroll,
		Logger:        logger,
		Events:        events,
	})
	eng.Start()
	defer eng.Close()
	logging.Info("Feed started", "mode", cfg.Client.Mode, "type", ct)

	app := ui.NewApp(eng, scroll, ui.Options{
		Muted: muted,
		Prefs: store,
		Ring:  ring,
	})
	p := tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		logging.Error("Application error", "error", err)
		fatal("Error: %v", err)
	}

	events.Info(otel.KindShutdown, "main", "client exit")
	logging.Info("cineswipe exiting normally")
}

// sourceFor picks the delivery source for the configured mode.
func sourceFor(cfg *config.Config, logger *log.Logger, events *otel.Logger) (engine.SourceFunc, error) {
	switch cfg.Client.Mode {
	case config.ModeStream:
		return engine.StreamSource(stream.Options{
			BaseURL:        cfg.Client.ServerURL,
			ConnectTimeout: cfg.Client.ConnectTimeout,
			RetryDelay:     cfg.Client.RetryDelay,
			Logger:         logger,
			Events:         events,
		}), nil
	case config.ModePaged:
		f := feed.NewHTTPPageFetcher(cfg.Client.ServerURL, cfg.Client.PageTimeout)
		return engine.PagedSource(f, logger), nil
	case config.ModeDirect:
		if cfg.TMDB.Token == "" {
			return nil, fmt.Errorf("direct mode needs a TMDB token (set TMDB_TOKEN)")
		}
		tmdb := provider.NewTMDB(provider.Config{
			BaseURL:    cfg.TMDB.BaseURL,
			Token:      cfg.TMDB.Token,
			Language:   cfg.TMDB.Language,
			Rate:       cfg.TMDB.Rate,
			Timeout:    cfg.TMDB.Timeout,
			MaxRetries: cfg.TMDB.MaxRetries,
			Logger:     logger,
			Events:     events,
		})
		asm := assemble.New(tmdb, assemble.Options{
			PageSize:      cfg.Server.PageSize,
			PriorityCount: cfg.Server.PriorityCount,
			BatchSize:     cfg.Server.BatchSize,
			Concurrency:   cfg.Server.Concurrency,
			DetailTimeout: cfg.Server.DetailTimeout,
			Logger:        logger,
			Events:        events,
		})
		return engine.PagedSource(asm, logger), nil
	}
	return nil, fmt.Errorf("unknown mode %q", cfg.Client.Mode)
}

// openEvents opens the JSONL event log when enabled. Otherwise events only
// reach the ring buffer.
func openEvents(cfg *config.Config) *otel.Logger {
	if !cfg.Log.Events {
		return otel.NewNullLogger()
	}
	dir := cfg.Log.Dir
	if dir == "" {
		dir = logging.DefaultDir()
	}
	l, err := otel.OpenFile(filepath.Join(dir, otel.EventsFile))
	if err != nil {
		logging.Warn("Event log disabled", "error", err)
		return otel.NewNullLogger()
	}
	return l
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

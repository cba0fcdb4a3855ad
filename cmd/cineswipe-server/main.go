// Command cineswipe-server streams assembled TMDB feed pages to cineswipe
// clients over Server-Sent Events.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/abelbrown/cineswipe/internal/assemble"
	"github.com/abelbrown/cineswipe/internal/config"
	"github.com/abelbrown/cineswipe/internal/logging"
	"github.com/abelbrown/cineswipe/internal/otel"
	"github.com/abelbrown/cineswipe/internal/provider"
	"github.com/abelbrown/cineswipe/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("Failed to load config: %v", err)
	}
	cfg.AutoPopulateFromEnv()
	if err := cfg.Validate(); err != nil {
		fatal("Invalid config: %v", err)
	}
	if cfg.TMDB.Token == "" {
		fatal("TMDB token required: set TMDB_TOKEN or tmdb.token")
	}

	// No terminal UI here, so logs go to stderr.
	logger := logging.New(os.Stderr, cfg.Log.Level)

	events := otel.NewNullLogger()
	if cfg.Log.Events {
		dir := cfg.Log.Dir
		if dir == "" {
			dir = logging.DefaultDir()
		}
		if l, err := otel.OpenFile(filepath.Join(dir, otel.EventsFile)); err != nil {
			logger.Warn("Event log disabled", "error", err)
		} else {
			events = l
		}
	}
	defer events.Close()
	events.Info(otel.KindStartup, "main", "server "+cfg.Server.Addr)

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

	metrics := server.NewMetrics()
	asm := assemble.New(tmdb, assemble.Options{
		PageSize:      cfg.Server.PageSize,
		PriorityCount: cfg.Server.PriorityCount,
		BatchSize:     cfg.Server.BatchSize,
		Concurrency:   cfg.Server.Concurrency,
		DetailTimeout: cfg.Server.DetailTimeout,
		Logger:        logger,
		Events:        events,
		OnDrop:        metrics.ItemDropped,
	})

	srv := server.New(asm, server.Options{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Metrics:         metrics,
		Logger:          logger,
		Events:          events,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err)
		events.Close()
		os.Exit(1)
	}
	events.Info(otel.KindShutdown, "main", "server exit")
	logger.Info("cineswipe-server stopped")
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// CLAUDE:SUMMARY Entry point for the yeoju editor service: YAML config, SQLite records and events, blob store, link preview chain, chi + MCP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/yeoju/dbopen"
	"github.com/hazyhaar/yeoju/editor"
	"github.com/hazyhaar/yeoju/observability"
	"github.com/hazyhaar/yeoju/recordstore"
	"github.com/hazyhaar/yeoju/server"
	"github.com/hazyhaar/yeoju/shield"
)

var version = "dev"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("yeoju", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the YAML file named by the first argument or YEOJU_CONFIG.
// Without either, defaults are used.
func loadConfig() (*server.Config, error) {
	path := env("YEOJU_CONFIG", "")
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if path == "" {
		cfg := server.DefaultConfig()
		return cfg, cfg.Validate()
	}
	return server.LoadConfig(path)
}

func run(ctx context.Context, cfg *server.Config, logger *slog.Logger) error {
	db, err := dbopen.Open(cfg.DBPath,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(recordstore.Schema),
		dbopen.WithSchema(observability.Schema))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	var (
		events editor.EventSink
		feed   server.EventFeed
	)
	if cfg.Events.Enabled {
		el := observability.NewEventLogger(db, cfg.Events.BufferSize, observability.WithLogger(logger))
		defer el.Close()
		events, feed = el, el
		go retainEvents(ctx, db, cfg.Events.RetentionDays, logger)
	}
	records := recordstore.New(db)

	blobs, files, err := cfg.BlobStore(logger)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}
	resolver, closer := cfg.Resolver(logger)
	defer closer.Close()

	drafts := server.NewDrafts(editor.Config{
		Blobs:        blobs,
		Resolver:     resolver,
		Records:      records,
		Events:       events,
		MaxFileBytes: cfg.MaxFileBytes(),
		Folder:       cfg.Editor.DefaultFolder,
		Logger:       logger,
	}, cfg.Editor.DraftIdle)
	defer drafts.CloseAll()
	drafts.StartSweeper(ctx, time.Minute, logger)

	linkLimiter := shield.NewRateLimiter(shield.RateLimit{Max: cfg.RateLimit.Links, Window: cfg.RateLimit.Window}, logger)
	imageLimiter := shield.NewRateLimiter(shield.RateLimit{Max: cfg.RateLimit.Images, Window: cfg.RateLimit.Window}, logger)
	linkLimiter.StartGC(ctx.Done(), 5*time.Minute)
	imageLimiter.StartGC(ctx.Done(), 5*time.Minute)

	opts := server.Options{
		Drafts:       drafts,
		MaxBodyBytes: cfg.MaxBodyBytes(),
		Files:        files,
		Records:      records,
		Events:       feed,
		LinkLimiter:  linkLimiter,
		ImageLimiter: imageLimiter,
		EnableMCP:    cfg.MCP.Enabled,
		Version:      version,
		Logger:       logger,
	}
	if remover, ok := blobs.(server.AssetRemover); ok {
		opts.Assets = remover
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(opts),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Listen, "blob_driver", cfg.Blob.Driver, "mcp", cfg.MCP.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

// retainEvents prunes the event log once a day.
func retainEvents(ctx context.Context, db *sql.DB, days int, logger *slog.Logger) {
	if days <= 0 {
		return
	}
	tick := time.NewTicker(24 * time.Hour)
	defer tick.Stop()
	for {
		if n, err := observability.Cleanup(ctx, db, days); err != nil {
			logger.Warn("events cleanup", "error", err)
		} else if n > 0 {
			logger.Info("events cleanup", "deleted", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

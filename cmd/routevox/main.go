// Command routevox is the main entry point for the Routevox voice assistant
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/routevox/routevox/internal/aliasdb"
	"github.com/routevox/routevox/internal/analytics"
	analyticspg "github.com/routevox/routevox/internal/analytics/postgres"
	"github.com/routevox/routevox/internal/brain"
	"github.com/routevox/routevox/internal/config"
	"github.com/routevox/routevox/internal/health"
	"github.com/routevox/routevox/internal/observe"
	"github.com/routevox/routevox/internal/route"
	"github.com/routevox/routevox/internal/server"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "routevox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "routevox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("routevox starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "routevox",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Alias store ───────────────────────────────────────────────────────────
	var (
		aliases  brain.AliasStore
		checkers []health.Checker
	)
	if cfg.Aliases.DBPath != "" {
		store, err := aliasdb.OpenSQLite(cfg.Aliases.DBPath)
		if err != nil {
			slog.Error("failed to open alias database", "path", cfg.Aliases.DBPath, "err", err)
			return 1
		}
		defer store.Close()
		aliases = store
		checkers = append(checkers, health.Checker{Name: "alias_db", Check: store.Ping})
		slog.Info("alias database opened", "path", cfg.Aliases.DBPath, "aliases", store.Len())
	} else {
		aliases = aliasdb.NewMemoryStore()
		slog.Info("alias store is in-memory only")
	}

	// ── Analytics sink ────────────────────────────────────────────────────────
	var sink analytics.Sink
	if cfg.Analytics.PostgresDSN != "" {
		pg, err := analyticspg.Open(ctx, cfg.Analytics.PostgresDSN)
		if err != nil {
			slog.Error("failed to open analytics sink", "err", err)
			return 1
		}
		defer pg.Close()
		sink = analytics.NewBreakerSink(pg, 0, 0)
		checkers = append(checkers, health.Checker{Name: "analytics_db", Check: pg.Ping})
		slog.Info("analytics sink connected")
	}

	// ── Stores and server ─────────────────────────────────────────────────────
	stops := route.NewStopList(nil)
	packages := route.NewPackageStore()

	srv := server.New(server.Deps{
		Config:   cfg,
		Version:  version,
		Stops:    stops,
		Packages: packages,
		Aliases:  aliases,
		Sink:     sink,
		Metrics:  observe.DefaultMetrics(),
		Checkers: checkers,
	})

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// newLogger builds the process-wide slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/api"
	"github.com/dhmspector/ZeitSatTrack/internal/config"
	"github.com/dhmspector/ZeitSatTrack/internal/stream"
	"github.com/dhmspector/ZeitSatTrack/internal/tle"
	"github.com/dhmspector/ZeitSatTrack/internal/tracing"
	"github.com/dhmspector/ZeitSatTrack/internal/tracker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}
	defer tracing.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	var source tracker.TLESource = tle.NewFetcher(cfg.TLE.FetchTimeout, logger)
	if cfg.TLE.CacheEnabled {
		source = tle.NewCachedSource(source, tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.CacheMaxFiles), logger)
	}

	m := tracker.New(tracker.Options{
		Source:            source,
		Groups:            config.NewGroupCatalog(cfg.Groups),
		PollInterval:      cfg.Tracker.PollInterval,
		ContinuousUpdates: cfg.Tracker.ContinuousUpdates,
		Workers:           cfg.Tracker.Workers,
		Logger:            logger,
	})

	hub := stream.NewHub(logger)
	removeHub := m.OnPositionsUpdated(hub)
	defer removeHub()
	streamHandler := stream.NewHandler(hub, m, cfg.Stream, logger)

	if cfg.Observer != nil {
		go func() {
			err := m.FollowLocation(ctx, config.NewStaticLocation(*cfg.Observer))
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("observer updates ended", "error", err)
			}
		}()
	}

	go preload(ctx, m, cfg.Tracker.Preload, cfg.Tracker.Watch, logger)

	srv := api.NewServer(cfg.HTTPAddr, logger, cfg.Auth, m, streamHandler)

	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr, "auth_enabled", cfg.Auth.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	// Stop polling first so /readyz reports 503 while connections drain.
	m.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// preload loads the configured groups ("Group") and subgroups
// ("Group/Subgroup"), then watches the configured names. Failures are
// logged; the daemon keeps serving whatever did load.
func preload(ctx context.Context, m *tracker.Manager, loads, watch []string, logger *slog.Logger) {
	for _, item := range loads {
		var (
			res tracker.LoadResult
			err error
		)
		if group, sub, ok := strings.Cut(item, "/"); ok {
			res, err = m.LoadSubgroup(ctx, group, sub)
		} else {
			res, err = m.LoadGroup(ctx, item)
		}
		if err != nil {
			logger.Warn("preload failed", "item", item, "added", res.Added, "error", err)
			continue
		}
		logger.Info("preloaded", "item", item, "added", res.Added)
	}
	for _, name := range watch {
		if !m.Watch(name) {
			logger.Warn("cannot watch satellite", "satellite", name)
		}
	}
}

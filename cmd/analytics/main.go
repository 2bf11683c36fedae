// Command analytics starts the standalone compile-analytics service.
//
// It consumes compile events from Kafka, aggregates them in memory (outcome
// counts, empty-match reasons, field usage, latency percentiles, top queries)
// and exposes them at GET /api/v1/analytics. With Postgres enabled the
// aggregate is restored on startup and snapshotted periodically.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting analytics service", "port", cfg.Analytics.Port)
	m := metrics.New(nil)
	checker := health.NewChecker()
	agg := analytics.NewAggregator(cfg.Analytics.TopN)

	g, gctx := errgroup.WithContext(ctx)

	var snapshots analytics.SnapshotLister
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		checker.Register("postgres", health.Ping(db.Ping, false))

		store := aggregator.NewStore(db, cfg.Analytics.SnapshotRetention)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating snapshot schema: %w", err)
		}
		latest, err := store.LatestSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("restoring snapshot: %w", err)
		}
		if latest != nil {
			agg.Restore(*latest)
			slog.Info("aggregate restored", "total_compiles", latest.TotalCompiles)
		}
		store.StartPeriodicSave(gctx, agg, cfg.Analytics.SnapshotInterval)
		snapshots = store
	}

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CompileEvents, kafka.ReaderOptions{},
			analytics.HandleEvent(agg))
		g.Go(func() error { return consumer.Start(gctx) })
		checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
			st := consumer.Stats()
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%d processed, %d malformed, %d abandoned", st.Processed, st.Malformed, st.Abandoned),
			}
		})
		slog.Info("consuming compile events", "topic", cfg.Kafka.Topics.CompileEvents)
	} else {
		slog.Warn("kafka disabled, aggregate only reflects restored snapshots")
	}

	h := analytics.NewHandler(agg, snapshots)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.AccessLog, middleware.Metrics(m)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Command searcher serves the classic query compiler over HTTP and the
// JSON-over-TCP RPC port, backed by a reference paper index.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/compiler"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/rpc"
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
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting search service", "port", cfg.Server.Port, "rpc_port", cfg.RPC.Port)
	m := metrics.New(nil)
	checker := health.NewChecker()

	engine, err := indexer.NewEngine(cfg.Index, m)
	if err != nil {
		return fmt.Errorf("opening paper index: %w", err)
	}
	defer engine.Close()
	if cfg.Index.SeedFile != "" {
		n, err := engine.LoadFile(ctx, cfg.Index.SeedFile)
		if err != nil {
			return fmt.Errorf("loading seed file: %w", err)
		}
		slog.Info("seed papers indexed", "file", cfg.Index.SeedFile, "papers", n)
	}
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		count, err := engine.DocCount()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", count)}
	})

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, compile caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.Ping(redisClient.Ping, true))
			slog.Info("compile cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Port) })
	}

	aggregator := analytics.NewAggregator(cfg.Analytics.TopN)
	trackers := analytics.Trackers{aggregator}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CompileEvents)
		defer producer.Close()
		bc := collector.NewBatchCollector(producer, collector.Options{
			BatchSize:     cfg.Analytics.BatchSize,
			MaxBuffered:   cfg.Analytics.BufferSize,
			FlushInterval: cfg.Analytics.FlushInterval,
			Metrics:       m,
		})
		bc.Start(gctx)
		defer bc.Close()
		trackers = append(trackers, bc)
		checker.Register("compile-events", func(context.Context) health.ComponentHealth {
			st := bc.Stats()
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%d published, %d pending, %d dropped", st.Published, st.Pending, st.Dropped),
			}
		})
		slog.Info("compile events published", "topic", cfg.Kafka.Topics.CompileEvents)

		if queryCache != nil {
			host, _ := os.Hostname()
			invalidations := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate, kafka.ReaderOptions{
				Group:      fmt.Sprintf("%s-cache-%s-%d", cfg.Kafka.ConsumerGroup, host, os.Getpid()),
				FromLatest: true,
			}, cache.InvalidationHandler(queryCache))
			g.Go(func() error { return invalidations.Start(gctx) })
		}
	}

	pipeline := compiler.NewPipeline(func(stage compiler.Stage, d time.Duration) {
		m.ObserveStage(string(stage), d)
	})
	sampleRate := 0.0
	if cfg.Tracing.Enabled {
		sampleRate = cfg.Tracing.SampleRate
	}
	svc := handler.NewService(handler.Options{
		Compiler:        pipeline,
		Cache:           queryCache,
		Searcher:        executor.New(engine, cfg.Search.Timeout),
		Tracker:         trackers,
		Metrics:         m,
		MaxQueryLength:  cfg.Search.MaxQueryLength,
		DefaultLimit:    cfg.Search.DefaultLimit,
		MaxResults:      cfg.Search.MaxResults,
		TraceSampleRate: sampleRate,
	})

	mux := http.NewServeMux()
	handler.New(svc).Routes(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator, nil).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.AccessLog,
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.RequestTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.RPC.Port > 0 {
		rpcServer := rpc.NewServer()
		handler.RegisterRPC(rpcServer, svc)
		g.Go(func() error {
			return rpcServer.Serve(fmt.Sprintf(":%d", cfg.RPC.Port))
		})
		g.Go(func() error {
			<-gctx.Done()
			rpcServer.Stop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down search service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

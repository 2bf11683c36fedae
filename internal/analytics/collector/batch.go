// Package collector publishes compile events to Kafka in batches.
package collector

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/metrics"
)

// Options tunes a BatchCollector. Zero values take defaults.
type Options struct {
	BatchSize     int
	MaxBuffered   int
	FlushInterval time.Duration
	Metrics       *metrics.Metrics
}

// Stats counts events by fate since the collector was created.
type Stats struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int64 `json:"pending"`
}

// BatchCollector hands compile events to a single loop goroutine, which
// publishes them when a batch fills or the flush interval elapses. Track
// never blocks: events beyond MaxBuffered are dropped. A failed batch is
// kept and retried on the next tick rather than on every new event.
type BatchCollector struct {
	publisher kafka.Publisher
	opts      Options
	in        chan analytics.CompileEvent
	done      chan struct{}
	logger    *slog.Logger

	pending   []kafka.Event
	failing   bool
	nPending  atomic.Int64
	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

var _ analytics.Tracker = (*BatchCollector)(nil)

func NewBatchCollector(publisher kafka.Publisher, opts Options) *BatchCollector {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxBuffered < opts.BatchSize {
		opts.MaxBuffered = opts.BatchSize * 3
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	return &BatchCollector{
		publisher: publisher,
		opts:      opts,
		in:        make(chan analytics.CompileEvent, opts.MaxBuffered),
		done:      make(chan struct{}),
		logger:    slog.Default().With("component", "batch-collector"),
	}
}

// Start runs the publish loop until ctx is cancelled, then drains queued
// events and makes one last flush.
func (bc *BatchCollector) Start(ctx context.Context) {
	go bc.run(ctx)
	bc.logger.Info("batch collector started",
		"batch_size", bc.opts.BatchSize,
		"max_buffered", bc.opts.MaxBuffered,
		"flush_interval", bc.opts.FlushInterval,
	)
}

// Close waits for the loop started by Start to exit.
func (bc *BatchCollector) Close() {
	<-bc.done
}

// Track queues an event keyed by its outcome.
func (bc *BatchCollector) Track(event analytics.CompileEvent) {
	select {
	case bc.in <- event:
	default:
		bc.drop(1)
		bc.logger.Warn("compile event dropped (buffer full)", "outcome", event.Outcome)
	}
}

func (bc *BatchCollector) Stats() Stats {
	return Stats{
		Published: bc.published.Load(),
		Failed:    bc.failed.Load(),
		Dropped:   bc.dropped.Load(),
		Pending:   bc.nPending.Load() + int64(len(bc.in)),
	}
}

func (bc *BatchCollector) run(ctx context.Context) {
	defer close(bc.done)
	ticker := time.NewTicker(bc.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-bc.in:
			bc.add(ev)
			if len(bc.pending) >= bc.opts.BatchSize && !bc.failing {
				bc.flush(ctx)
			}
		case <-ticker.C:
			bc.flush(ctx)
		case <-ctx.Done():
			for drained := false; !drained; {
				select {
				case ev := <-bc.in:
					bc.add(ev)
				default:
					drained = true
				}
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			bc.flush(flushCtx)
			cancel()
			return
		}
	}
}

func (bc *BatchCollector) add(ev analytics.CompileEvent) {
	bc.pending = append(bc.pending, kafka.Event{Key: ev.Outcome, Schema: analytics.EventSchema, Value: ev})
	if over := len(bc.pending) - bc.opts.MaxBuffered; over > 0 {
		bc.pending = bc.pending[over:]
		bc.drop(over)
	}
	bc.nPending.Store(int64(len(bc.pending)))
}

func (bc *BatchCollector) flush(ctx context.Context) {
	if len(bc.pending) == 0 {
		return
	}
	batch := bc.pending
	if err := bc.publisher.PublishBatch(ctx, batch); err != nil {
		if !bc.failing {
			bc.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)
		}
		bc.failing = true
		bc.failed.Add(int64(len(batch)))
		bc.count("failed", len(batch))
		return
	}
	if bc.failing {
		bc.logger.Info("batch flush recovered", "batch_size", len(batch))
	}
	bc.failing = false
	bc.pending = make([]kafka.Event, 0, bc.opts.BatchSize)
	bc.nPending.Store(0)
	bc.published.Add(int64(len(batch)))
	bc.count("published", len(batch))
	bc.logger.Debug("batch flushed", "events", len(batch))
}

func (bc *BatchCollector) drop(n int) {
	bc.dropped.Add(int64(n))
	bc.count("dropped", n)
}

func (bc *BatchCollector) count(status string, n int) {
	bc.opts.Metrics.CountEvents(status, n)
}

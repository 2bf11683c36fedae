// Package aggregator persists snapshots of compile analytics to PostgreSQL.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/resilience"
)

// Schema creates the snapshot table. Outcome totals are also kept in
// columns so they can be charted without unpacking the JSON.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS compile_snapshots (
		id             BIGSERIAL PRIMARY KEY,
		data           JSONB NOT NULL,
		total_compiles BIGINT NOT NULL,
		total_searches BIGINT NOT NULL,
		empty_matches  BIGINT NOT NULL,
		captured_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS compile_snapshots_captured_at_idx
		ON compile_snapshots (captured_at DESC)`,
}

// Store persists aggregated compile analytics snapshots.
type Store struct {
	db        *postgres.Client
	retention int
	retry     resilience.RetryConfig
	logger    *slog.Logger
}

var _ analytics.SnapshotLister = (*Store)(nil)

// NewStore returns a store that keeps the newest retention snapshots.
// A retention of zero or less keeps every snapshot.
func NewStore(db *postgres.Client, retention int) *Store {
	return &Store{
		db:        db,
		retention: retention,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
		},
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// Migrate creates the snapshot table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx, Schema...)
}

// SaveSnapshot persists a stats snapshot and prunes rows past the retention
// window in the same transaction, retrying transient failures.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	var pruned int64
	err = resilience.Retry(ctx, "save-compile-snapshot", s.retry, func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO compile_snapshots (data, total_compiles, total_searches, empty_matches, captured_at)
				 VALUES ($1, $2, $3, $4, $5)`,
				data, stats.TotalCompiles, stats.TotalSearches,
				stats.Outcomes[analytics.OutcomeEmpty], stats.CapturedAt,
			); err != nil {
				return err
			}
			if s.retention <= 0 {
				return nil
			}
			res, err := tx.ExecContext(ctx,
				`DELETE FROM compile_snapshots WHERE id NOT IN (
					SELECT id FROM compile_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1
				)`, s.retention)
			if err != nil {
				return fmt.Errorf("pruning snapshots: %w", err)
			}
			pruned, _ = res.RowsAffected()
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}

	s.logger.Debug("analytics snapshot saved",
		"total_compiles", stats.TotalCompiles,
		"total_searches", stats.TotalSearches,
		"pruned", pruned,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot. It returns nil, nil when no
// snapshot exists yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM compile_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// ListSnapshots returns the last N snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM compile_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.AggregatedStats
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats analytics.AggregatedStats
		if err := json.Unmarshal(data, &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}

	return snapshots, rows.Err()
}

// StartPeriodicSave snapshots agg every interval, plus once more on shutdown.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}

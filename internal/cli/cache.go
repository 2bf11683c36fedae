package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/kafka"
)

func newCacheCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the searchers' compiled-query cache",
	}
	cmd.AddCommand(newCacheInvalidateCommand(opts))
	return cmd
}

func newCacheInvalidateCommand(opts *options) *cobra.Command {
	var (
		reason  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Tell every searcher to drop its cached query trees",
		Long: `Publish an invalidation notice on the configured Kafka topic. Every
running searcher with Redis caching enabled flushes its compiled-query cache
when the notice arrives.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.cfg.Kafka.Enabled {
				return fmt.Errorf("kafka is disabled in the configuration; enable it to broadcast invalidations")
			}
			host, _ := os.Hostname()
			notice := cache.InvalidationNotice{
				Reason:   reason,
				IssuedBy: host,
				IssuedAt: time.Now().UTC(),
			}

			producer := kafka.NewProducer(opts.cfg.Kafka, opts.cfg.Kafka.Topics.CacheInvalidate)
			defer producer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := producer.Publish(ctx, cache.NoticeEvent(notice)); err != nil {
				return err
			}

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"status": "published",
					"topic":  opts.cfg.Kafka.Topics.CacheInvalidate,
					"notice": notice,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidation published to %s\n", opts.cfg.Kafka.Topics.CacheInvalidate)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual invalidation", "Reason recorded in searcher logs")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Time allowed for publishing")
	return cmd
}

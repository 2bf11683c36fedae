// Package cli implements the classicq command: compile, explain and search
// classic queries locally or against a running searcher, and replay access
// logs through the compiler.
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/compiler"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/logger"
)

var (
	Version     = "dev"
	BuildCommit = "unknown"
	BuildDate   = "unknown"
)

const sourceCLI = "cli"

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	jsonOutput bool
	verbose    bool

	cfg *config.Config
}

// NewRootCommand builds the classicq command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "classicq",
		Short: "classicq - compiler for the classic arXiv query language",
		Long: `classicq compiles queries written in the legacy arXiv/Lucene classic
syntax (ti:, au:, abs:, AND, ANDNOT, date ranges and so on) into an
engine-neutral query tree.

It can print the compiled tree, explain each compilation stage, search a
local paper index, and replay Apache access logs to see how real traffic
compiles.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newCompileCommand(opts),
		newExplainCommand(opts),
		newReplayCommand(opts),
		newIndexCommand(opts),
		newSearchCommand(opts),
		newCacheCommand(opts),
		newVersionCommand(opts),
	)
	return root
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// load reads configuration and routes logs to stderr so command output stays
// machine readable.
func (o *options) load(stderr io.Writer) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	slog.SetDefault(logger.New(stderr, logger.Options{Level: level}))
	return nil
}

// service builds an in-process query service with no cache, index or
// analytics.
func (o *options) service(searcher handler.Searcher) *handler.Service {
	return handler.NewService(handler.Options{
		Compiler:       compiler.NewPipeline(nil),
		Searcher:       searcher,
		MaxQueryLength: o.cfg.Search.MaxQueryLength,
		DefaultLimit:   o.cfg.Search.DefaultLimit,
		MaxResults:     o.cfg.Search.MaxResults,
	})
}

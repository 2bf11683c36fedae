package compiler

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/lexer"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/scope"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/tracing"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageLex     Stage = "lex"
	StageParse   Stage = "parse"
	StageResolve Stage = "resolve"
	StageCompile Stage = "compile"
)

// StageObserver receives the duration of every stage that ran.
type StageObserver func(stage Stage, elapsed time.Duration)

// Pipeline is CompileString with a child tracing span and an observer
// callback per stage. It holds no per-query state and is safe for
// concurrent use.
type Pipeline struct {
	observe StageObserver
	logger  *slog.Logger
}

func NewPipeline(observe StageObserver) *Pipeline {
	return &Pipeline{
		observe: observe,
		logger:  slog.Default().With("component", "query-compiler"),
	}
}

func (p *Pipeline) Compile(ctx context.Context, input string) (query.Node, error) {
	var tokens []lexer.Token
	err := p.stage(ctx, StageLex, func() error {
		var err error
		tokens, err = lexer.Tokenize(input)
		return err
	})
	if err != nil {
		p.logger.Debug("query rejected", "query", input, "error", err)
		return nil, err
	}

	var tree ast.Node
	err = p.stage(ctx, StageParse, func() error {
		var err error
		tree, err = parser.Parse(tokens)
		return err
	})
	if err != nil {
		p.logger.Debug("query rejected", "query", input, "error", err)
		return nil, err
	}

	_ = p.stage(ctx, StageResolve, func() error {
		tree = scope.Resolve(tree)
		return nil
	})

	var compiled query.Node
	_ = p.stage(ctx, StageCompile, func() error {
		compiled = Compile(tree)
		return nil
	})

	p.logger.Debug("query compiled",
		"query", input,
		"tokens", len(tokens)-1,
		"empty", query.IsEmpty(compiled),
	)
	return compiled, nil
}

func (p *Pipeline) stage(ctx context.Context, stage Stage, fn func() error) error {
	_, span := tracing.StartChildSpan(ctx, "compile."+string(stage))
	start := time.Now()
	err := fn()
	span.RecordError(err)
	span.End()
	if p.observe != nil {
		p.observe(stage, time.Since(start))
	}
	return err
}

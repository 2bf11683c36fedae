package handler

import (
	"context"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/lexer"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/tracing"
)

// TokenView is the JSON form of one lexer token.
type TokenView struct {
	Kind string `json:"kind"`
	Pos  int    `json:"pos"`
	Src  string `json:"src"`
	Desc string `json:"desc"`
}

// Explanation shows every step of one compilation: the tokens, the per-stage
// trace and the resulting tree.
type Explanation struct {
	Query  string       `json:"query"`
	Tokens []TokenView  `json:"tokens"`
	Node   query.Node   `json:"-"`
	Trace  tracing.View `json:"trace"`
}

// Explain compiles input outside the cache under a fresh trace so each stage
// is timed.
func (s *Service) Explain(ctx context.Context, input string) (*Explanation, error) {
	if s.maxQueryLength > 0 && len(input) > s.maxQueryLength {
		return nil, apperrors.Newf(apperrors.ErrQueryTooLong, http.StatusRequestEntityTooLarge,
			"query is %d bytes, the limit is %d", len(input), s.maxQueryLength)
	}
	tokens, err := lexer.Tokenize(input)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "explain", logger.RequestID(ctx))
	node, err := s.compiler.Compile(ctx, input)
	span.End()
	if err != nil {
		return nil, err
	}

	views := make([]TokenView, 0, len(tokens))
	for _, t := range tokens {
		if t.Kind == lexer.EOF {
			continue
		}
		views = append(views, TokenView{Kind: t.Kind.String(), Pos: t.Pos, Src: t.Src, Desc: t.String()})
	}
	return &Explanation{Query: input, Tokens: views, Node: node, Trace: span.View()}, nil
}

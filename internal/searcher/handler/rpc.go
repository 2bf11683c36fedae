package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/rpc"
)

const sourceRPC = "rpc"

// RegisterRPC exposes the service's compile, search and health methods on
// srv.
func RegisterRPC(srv *rpc.Server, service *Service) {
	srv.Register(proto.MethodCompile, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.CompileRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding compile request: %w", err)
		}
		compiled, err := service.Compile(ctx, sourceRPC, req.Query)
		if err != nil {
			return nil, err
		}
		return CompileResponse(compiled)
	})

	srv.Register(proto.MethodSearch, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.SearchRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding search request: %w", err)
		}
		outcome, err := service.Search(ctx, sourceRPC, SearchParams{
			Query:  req.Query,
			IDList: req.IDList,
			Limit:  int(req.Limit),
			Offset: int(req.Offset),
		})
		if err != nil {
			return nil, err
		}
		return SearchResponse(outcome), nil
	})

	srv.Register(proto.MethodHealth, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return &proto.HealthCheckResponse{Status: "SERVING"}, nil
	})
}

// Package handler exposes the classic query compiler over HTTP and RPC. Both
// front ends delegate to Service, which owns caching, execution and
// analytics.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/logger"
)

const sourceHTTP = "http"

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func New(service *Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default().With("component", "query-handler"),
	}
}

// Routes registers the query API on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/compile", h.Compile)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/explain", h.Explain)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Compile handles GET /api/v1/compile?search_query=...
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("search_query")
	compiled, err := h.service.Compile(r.Context(), sourceHTTP, input)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	resp, err := CompileResponse(compiled)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Search handles GET /api/v1/search with the legacy query API parameters:
// search_query, id_list, max_results and start.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	p := SearchParams{Query: params.Get("search_query")}
	if v := params.Get("id_list"); v != "" {
		p.IDList = []string{v}
	}

	var err error
	if p.Limit, err = intParam(params.Get("max_results")); err != nil {
		h.writeError(w, http.StatusBadRequest, "max_results must be an integer")
		return
	}
	if p.Offset, err = intParam(params.Get("start")); err != nil {
		h.writeError(w, http.StatusBadRequest, "start must be an integer")
		return
	}

	outcome, err := h.service.Search(r.Context(), sourceHTTP, p)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("search completed",
		"query", p.Query,
		"id_list", len(p.IDList) > 0,
		"total_hits", outcome.Result.TotalHits,
		"returned", len(outcome.Result.Hits),
		"cache_hit", outcome.Cached,
		"latency_ms", outcome.Latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, SearchResponse(outcome))
}

// Explain handles GET /api/v1/explain?search_query=...
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("search_query")
	exp, err := h.service.Explain(r.Context(), input)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	tree, err := query.Marshal(exp.Node)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"query":     exp.Query,
		"tokens":    exp.Tokens,
		"canonical": query.String(exp.Node),
		"tree":      json.RawMessage(tree),
		"trace":     exp.Trace,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.service.CacheStats()
	if !ok {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"total":    total,
		"hit_rate": strconv.FormatFloat(hitRate, 'f', 1, 64) + "%",
		"breaker":  stats.Breaker,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.InvalidateCache(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError renders err as JSON. Syntax errors become 400s carrying
// kind, position and token.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.FromSyntax(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	body := map[string]any{"error": appErr.Message}
	if errors.Is(appErr, apperrors.ErrInvalidQuery) {
		body["error"] = appErr.Err.Error()
		body["message"] = appErr.Message
	}
	for k, v := range appErr.Details {
		body[k] = v
	}
	h.writeJSON(w, appErr.StatusCode, body)
}

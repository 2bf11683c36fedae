// Package logger configures log/slog for the services and the CLI and
// carries the request ID through contexts.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// DefaultMaxValueLen caps string attribute values. Raw queries may be several
// kilobytes and are logged on every request.
const DefaultMaxValueLen = 512

type contextKey struct{}

// Options selects the handler. Format is "json" or "text"; anything else
// falls back to text.
type Options struct {
	Level       string
	Format      string
	MaxValueLen int
}

// Setup installs the process-wide default logger writing to stdout.
func Setup(level string, format string) {
	slog.SetDefault(New(os.Stdout, Options{Level: level, Format: format}))
}

// New builds a logger without touching the default.
func New(w io.Writer, opts Options) *slog.Logger {
	limit := opts.MaxValueLen
	if limit <= 0 {
		limit = DefaultMaxValueLen
	}
	hopts := &slog.HandlerOptions{
		Level:       parseLevel(opts.Level),
		ReplaceAttr: truncateAttr(limit),
	}
	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, hopts)
	default:
		handler = slog.NewTextHandler(w, hopts)
	}
	return slog.New(handler)
}

func truncateAttr(limit int) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		if a.Value.Kind() != slog.KindString {
			return a
		}
		s := a.Value.String()
		if len(s) <= limit {
			return a
		}
		cut := limit
		for cut > 0 && !isRuneStart(s[cut]) {
			cut--
		}
		return slog.String(a.Key, fmt.Sprintf("%s...(+%d bytes)", s[:cut], len(s)-cut))
	}
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// RequestID returns the request ID stored by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// FromContext returns the default logger, tagged with the request ID when
// ctx carries one.
func FromContext(ctx context.Context) *slog.Logger {
	if id := RequestID(ctx); id != "" {
		return slog.Default().With("request_id", id)
	}
	return slog.Default()
}

// parseLevel accepts slog level names in any case, including offsets such
// as "debug+2". Unknown names log at info.
func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

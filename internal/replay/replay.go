// Package replay re-runs classic queries taken from Apache access logs
// through the compiler and tallies what happens to them. It is used to check
// the compiler against real traffic before a cut-over.
package replay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/syntax"
)

var requestLine = regexp.MustCompile(`"(GET|POST|PUT|DELETE|HEAD|OPTIONS) (.*?) HTTP/[\d.]+" (\d{3}) (\d+|-)`)

// CompileFunc compiles one query. compiler.CompileString satisfies it once
// wrapped to take a context.
type CompileFunc func(ctx context.Context, input string) (query.Node, error)

// Options narrow which log lines are replayed.
type Options struct {
	// StartLine skips lines before it (1-based).
	StartLine int
	// AllStatuses replays requests regardless of their logged status.
	// Otherwise only 200 responses are replayed.
	AllStatuses bool
	// MaxFailures caps how many failures are kept in the report.
	MaxFailures int
}

// Failure is one query that did not compile.
type Failure struct {
	Line     int    `json:"line"`
	Query    string `json:"query"`
	Kind     string `json:"kind"`
	Position int    `json:"position"`
	Message  string `json:"message"`
}

// Report summarises a replay.
type Report struct {
	Lines        int            `json:"lines"`
	Requests     int            `json:"requests"`
	Replayed     int            `json:"replayed"`
	SkippedCode  int            `json:"skipped_status"`
	NoQuery      int            `json:"no_search_query"`
	Outcomes     map[string]int `json:"outcomes"`
	EmptyReasons map[string]int `json:"empty_reasons"`
	Fields       map[string]int `json:"fields"`
	Failures     []Failure      `json:"failures"`
}

// SortedOutcomes returns outcome names by descending count, ties by name.
func (r *Report) SortedOutcomes() []string {
	names := make([]string, 0, len(r.Outcomes))
	for name := range r.Outcomes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if r.Outcomes[names[i]] != r.Outcomes[names[j]] {
			return r.Outcomes[names[i]] > r.Outcomes[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

type Replayer struct {
	compile CompileFunc
	opts    Options
	logger  *slog.Logger
}

func New(compile CompileFunc, opts Options) *Replayer {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 1000
	}
	return &Replayer{
		compile: compile,
		opts:    opts,
		logger:  slog.Default().With("component", "log-replay"),
	}
}

// File replays a log file. Files ending in .gz are decompressed.
func (rp *Replayer) File(ctx context.Context, path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening access log: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip access log: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return rp.Run(ctx, r)
}

// Run replays every matching request line read from r.
func (rp *Replayer) Run(ctx context.Context, r io.Reader) (*Report, error) {
	report := &Report{
		Outcomes:     make(map[string]int),
		EmptyReasons: make(map[string]int),
		Fields:       make(map[string]int),
		Failures:     []Failure{},
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Lines++
		if line < rp.opts.StartLine {
			continue
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		m := requestLine.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		report.Requests++
		if !rp.opts.AllStatuses && m[3] != "200" {
			report.SkippedCode++
			continue
		}

		input, ok := SearchQuery(m[2])
		if !ok {
			report.NoQuery++
			continue
		}
		rp.replay(ctx, report, line, input)
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("reading access log: %w", err)
	}

	rp.logger.Info("replay finished",
		"lines", report.Lines,
		"replayed", report.Replayed,
		"failures", len(report.Failures),
	)
	return report, nil
}

func (rp *Replayer) replay(ctx context.Context, report *Report, line int, input string) {
	report.Replayed++
	node, err := rp.compile(ctx, input)
	outcome, reason := analytics.Outcome(node, err)
	report.Outcomes[outcome]++
	if reason != "" {
		report.EmptyReasons[reason]++
	}
	if err != nil {
		f := Failure{Line: line, Query: input, Kind: outcome, Message: err.Error()}
		if se, ok := syntax.AsError(err); ok {
			f.Position = se.Pos
			f.Message = se.Msg
		}
		if len(report.Failures) < rp.opts.MaxFailures {
			report.Failures = append(report.Failures, f)
		}
		rp.logger.Debug("query failed", "line", line, "query", input, "error", err)
		return
	}
	for _, f := range query.FieldsUsed(node) {
		report.Fields[f.String()]++
	}
}

// SearchQuery extracts the search_query parameter from a logged request
// target such as /api/query?search_query=ti:foo&max_results=10.
func SearchQuery(target string) (string, bool) {
	u, err := url.Parse(target)
	if err != nil {
		return "", false
	}
	values, ok := u.Query()["search_query"]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/syntax"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/rpc"
)

func writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	separators := make([]string, len(headers))
	for i, h := range headers {
		separators[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(separators, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// pointAt prints input with a caret under the byte offset a compile error
// reports, for local syntax errors and remote RPC errors alike. It returns
// false when err carries no position.
func pointAt(w io.Writer, input string, err error) bool {
	var (
		kind, msg string
		pos       int
	)
	var rpcErr *rpc.Error
	if se, ok := syntax.AsError(err); ok {
		kind, pos, msg = se.Kind.String(), se.Pos, se.Msg
	} else if errors.As(err, &rpcErr) && rpcErr.Position != nil {
		kind, pos, msg = rpcErr.Kind, *rpcErr.Position, rpcErr.Message
	} else {
		return false
	}
	if pos > len(input) {
		pos = len(input)
	}
	fmt.Fprintln(w, input)
	fmt.Fprintf(w, "%s^\n", strings.Repeat(" ", pos))
	fmt.Fprintf(w, "%s: %s\n", kind, msg)
	return true
}

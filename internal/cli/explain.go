package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/tracing"
)

func newExplainCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <query>",
		Short: "Show the tokens, stage timings and result of compiling a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := opts.service(nil).Explain(cmd.Context(), args[0])
			if err != nil {
				pointAt(cmd.ErrOrStderr(), args[0], err)
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				tree, err := query.Marshal(exp.Node)
				if err != nil {
					return err
				}
				return writeJSON(out, map[string]any{
					"query":     exp.Query,
					"tokens":    exp.Tokens,
					"canonical": query.String(exp.Node),
					"tree":      json.RawMessage(tree),
					"trace":     exp.Trace,
				})
			}
			return printExplanation(out, exp)
		},
	}
}

func printExplanation(w io.Writer, exp *handler.Explanation) error {
	fmt.Fprintln(w, "Tokens:")
	rows := make([][]string, 0, len(exp.Tokens))
	for _, t := range exp.Tokens {
		rows = append(rows, []string{strconv.Itoa(t.Pos), t.Kind, t.Src})
	}
	if err := writeTable(w, []string{"POS", "KIND", "SOURCE"}, rows); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nStages:")
	printSpan(w, exp.Trace, 0)

	fmt.Fprintf(w, "\nCompiled:\n%s\n", query.String(exp.Node))
	if empty, ok := exp.Node.(*query.Empty); ok {
		fmt.Fprintf(w, "matches nothing: %s\n", empty.Reason)
	}
	return nil
}

func printSpan(w io.Writer, v tracing.View, depth int) {
	fmt.Fprintf(w, "%s%s %dµs\n", strings.Repeat("  ", depth), v.Name, v.DurationUS)
	for _, c := range v.Children {
		printSpan(w, c, depth+1)
	}
}

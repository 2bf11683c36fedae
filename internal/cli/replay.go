package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/replay"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
)

func newReplayCommand(opts *options) *cobra.Command {
	var (
		replayOpts   replay.Options
		showFailures int
	)
	cmd := &cobra.Command{
		Use:   "replay <access-log>",
		Short: "Compile every search_query found in an Apache access log",
		Long: `Compile every search_query found in an Apache access log and report
how many compiled, how many match nothing and which syntax errors occurred.

Only GET/POST request lines with a 200 status are replayed unless
--all-statuses is given. Logs ending in .gz are decompressed.

Examples:
  classicq replay /var/log/apache2/export_access.log
  classicq replay --start-line 4404 --failures 50 access.log.gz
  classicq replay --json access.log > report.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := opts.service(nil)
			compile := func(ctx context.Context, input string) (query.Node, error) {
				c, err := svc.Compile(ctx, sourceCLI, input)
				if err != nil {
					return nil, err
				}
				return c.Node, nil
			}

			report, err := replay.New(compile, replayOpts).File(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, report)
			}
			return printReport(out, report, showFailures)
		},
	}
	cmd.Flags().IntVar(&replayOpts.StartLine, "start-line", 0, "Skip log lines before this one")
	cmd.Flags().BoolVar(&replayOpts.AllStatuses, "all-statuses", false, "Replay requests whatever their logged status")
	cmd.Flags().IntVar(&replayOpts.MaxFailures, "max-failures", 1000, "Failures kept in the report")
	cmd.Flags().IntVar(&showFailures, "failures", 20, "Failures printed in the text report")
	return cmd
}

func printReport(w io.Writer, r *replay.Report, showFailures int) error {
	fmt.Fprintf(w, "lines %d, requests %d, replayed %d, skipped (status) %d, without search_query %d\n\n",
		r.Lines, r.Requests, r.Replayed, r.SkippedCode, r.NoQuery)

	rows := make([][]string, 0, len(r.Outcomes))
	for _, name := range r.SortedOutcomes() {
		rows = append(rows, []string{name, strconv.Itoa(r.Outcomes[name]), percent(r.Outcomes[name], r.Replayed)})
	}
	if err := writeTable(w, []string{"OUTCOME", "COUNT", "SHARE"}, rows); err != nil {
		return err
	}

	if len(r.EmptyReasons) > 0 {
		fmt.Fprintln(w)
		if err := writeTable(w, []string{"EMPTY REASON", "COUNT"}, countRows(r.EmptyReasons)); err != nil {
			return err
		}
	}
	if len(r.Fields) > 0 {
		fmt.Fprintln(w)
		if err := writeTable(w, []string{"FIELD", "QUERIES"}, countRows(r.Fields)); err != nil {
			return err
		}
	}

	if len(r.Failures) > 0 && showFailures > 0 {
		fmt.Fprintln(w)
		rows = rows[:0]
		for i, f := range r.Failures {
			if i == showFailures {
				break
			}
			rows = append(rows, []string{strconv.Itoa(f.Line), f.Kind, strconv.Itoa(f.Position), f.Query})
		}
		if err := writeTable(w, []string{"LINE", "KIND", "POS", "QUERY"}, rows); err != nil {
			return err
		}
	}
	return nil
}

func countRows(counts map[string]int) [][]string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(counts[name])})
	}
	return rows
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return strconv.FormatFloat(float64(n)*100/float64(total), 'f', 1, 64) + "%"
}

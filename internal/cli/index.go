package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/handler"
)

func newIndexCommand(opts *options) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "index <papers.jsonl>...",
		Short: "Load JSON-lines paper metadata into an on-disk index",
		Long: `Load JSON-lines paper metadata into an on-disk bleve index that the
searcher and "classicq search" can open. Files ending in .gz are
decompressed. Invalid papers are skipped and logged.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg.Index
			if path != "" {
				cfg.Path = path
			}
			if cfg.Path == "" {
				return fmt.Errorf("an index path is required (--index or index.path)")
			}
			engine, err := indexer.NewEngine(cfg, nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			total := 0
			for _, file := range args {
				n, err := engine.LoadFile(cmd.Context(), file)
				if err != nil {
					return err
				}
				total += n
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d papers indexed\n", file, n)
			}
			count, err := engine.DocCount()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d papers, index holds %d documents\n", total, count)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "index", "", "Index directory (default index.path)")
	return cmd
}

func newSearchCommand(opts *options) *cobra.Command {
	var (
		path   string
		seed   string
		params handler.SearchParams
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Compile a query and run it against a local paper index",
		Long: `Compile a query and run it against a local paper index.

Examples:
  classicq search --index ./papers.bleve 'au:del_maestro ANDNOT ti:lattice'
  classicq search --seed papers.jsonl.gz --max-results 5 'cat:hep-th'
  classicq search --index ./papers.bleve --id-list 2101.00001v1,hep-th/9901001`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg.Index
			if path != "" {
				cfg.Path = path
			}
			if seed != "" {
				cfg.SeedFile = seed
			}
			engine, err := indexer.NewEngine(cfg, nil)
			if err != nil {
				return err
			}
			defer engine.Close()
			if cfg.SeedFile != "" {
				if _, err := engine.LoadFile(cmd.Context(), cfg.SeedFile); err != nil {
					return err
				}
			}

			if len(args) == 1 {
				params.Query = args[0]
			}
			svc := opts.service(executor.New(engine, opts.cfg.Search.Timeout))
			outcome, err := svc.Search(cmd.Context(), sourceCLI, params)
			if err != nil {
				pointAt(cmd.ErrOrStderr(), params.Query, err)
				return err
			}

			out := cmd.OutOrStdout()
			resp := handler.SearchResponse(outcome)
			if opts.jsonOutput {
				return writeJSON(out, resp)
			}
			if resp.Canonical != "" {
				fmt.Fprintln(out, resp.Canonical)
			}
			fmt.Fprintf(out, "%d total hits\n\n", resp.TotalHits)
			rows := make([][]string, 0, len(resp.Hits))
			for _, h := range resp.Hits {
				rows = append(rows, []string{h.ID, strconv.FormatFloat(h.Score, 'f', 3, 64), h.Submitted, h.Title})
			}
			return writeTable(out, []string{"ID", "SCORE", "SUBMITTED", "TITLE"}, rows)
		},
	}
	cmd.Flags().StringVar(&path, "index", "", "Index directory (default index.path, empty for in-memory)")
	cmd.Flags().StringVar(&seed, "seed", "", "JSON-lines papers to load before searching")
	cmd.Flags().StringSliceVar(&params.IDList, "id-list", nil, "Restrict to these paper ids")
	cmd.Flags().IntVarP(&params.Limit, "max-results", "n", 0, "Maximum results (default search.defaultLimit)")
	cmd.Flags().IntVar(&params.Offset, "start", 0, "Offset of the first result")
	return cmd
}

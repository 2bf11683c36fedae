package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/rpc"
)

func newCompileCommand(opts *options) *cobra.Command {
	var (
		rpcAddr  string
		showTree bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "compile <query>",
		Short: "Compile a classic query and print its canonical form",
		Long: `Compile a classic query and print its canonical form.

By default the query is compiled in-process. With --rpc the query is sent to
a running searcher's RPC endpoint instead.

Examples:
  classicq compile 'au:del_maestro AND ti:checkerboard'
  classicq compile --tree 'ti:(space AND (apple OR pineapple))'
  classicq compile --rpc localhost:9091 'submittedDate:[2020 TO 2021]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			input := args[0]
			var (
				resp *proto.CompileResponse
				err  error
			)
			if rpcAddr != "" {
				resp, err = compileRemote(ctx, rpcAddr, input)
			} else {
				resp, err = compileLocal(ctx, opts.service(nil), input)
			}
			if err != nil {
				pointAt(cmd.ErrOrStderr(), input, err)
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, resp)
			}
			return printCompiled(out, resp, showTree)
		},
	}
	cmd.Flags().StringVar(&rpcAddr, "rpc", "", "Compile on a running searcher at this RPC address")
	cmd.Flags().BoolVarP(&showTree, "tree", "t", false, "Print the compiled tree as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Overall timeout")
	return cmd
}

func compileLocal(ctx context.Context, svc *handler.Service, input string) (*proto.CompileResponse, error) {
	compiled, err := svc.Compile(ctx, sourceCLI, input)
	if err != nil {
		return nil, err
	}
	return handler.CompileResponse(compiled)
}

func compileRemote(ctx context.Context, addr, input string) (*proto.CompileResponse, error) {
	client, err := rpc.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var resp proto.CompileResponse
	if err := client.Call(ctx, proto.MethodCompile, &proto.CompileRequest{Query: input}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func printCompiled(w io.Writer, resp *proto.CompileResponse, showTree bool) error {
	fmt.Fprintln(w, resp.Canonical)
	if resp.Empty {
		fmt.Fprintf(w, "matches nothing: %s\n", resp.EmptyReason)
	}
	if showTree {
		var buf bytes.Buffer
		if err := json.Indent(&buf, resp.Tree, "", "  "); err != nil {
			return fmt.Errorf("formatting tree: %w", err)
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(w)
		return err
	}
	return nil
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/replay"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/compiler"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/rpc"
)

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "classicq", cmd.Use)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"compile", "explain", "replay", "index", "search", "cache", "version"})

	jsonFlag := cmd.PersistentFlags().Lookup("json")
	require.NotNil(t, jsonFlag)
	assert.Equal(t, "false", jsonFlag.DefValue)
}

func TestCompileCmd_RequiresQuery(t *testing.T) {
	_, _, err := run(t, "compile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestCompileCmd(t *testing.T) {
	stdout, _, err := run(t, "compile", "au:del_maestro ti:(a AND b)")
	require.NoError(t, err)
	assert.Equal(t, "au:\"del maestro\" OR (ti:a AND ti:b)\n", stdout)
}

func TestCompileCmd_EmptyAndTree(t *testing.T) {
	stdout, _, err := run(t, "compile", "--tree", "all:*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "matches nothing: wildcard-only term")
	assert.Contains(t, stdout, `"type": "empty"`)
}

func TestCompileCmd_JSON(t *testing.T) {
	stdout, _, err := run(t, "--json", "compile", "ti:quant*")
	require.NoError(t, err)

	var resp proto.CompileResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ti:quant*", resp.Canonical)
	assert.JSONEq(t, `{"type":"match","kind":"pattern","field":"title","value":"quant*"}`, string(resp.Tree))
}

func TestCompileCmd_SyntaxError(t *testing.T) {
	_, stderr, err := run(t, "compile", "ti:a xx:b")
	require.Error(t, err)
	assert.Contains(t, stderr, "ti:a xx:b\n     ^\n")
	assert.Contains(t, stderr, "UnknownField")
}

func TestCompileCmd_RPC(t *testing.T) {
	srv := rpc.NewServer()
	handler.RegisterRPC(srv, handler.NewService(handler.Options{Compiler: compiler.NewPipeline(nil)}))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.ServeListener(ln) }()
	t.Cleanup(srv.Stop)

	stdout, _, err := run(t, "compile", "--rpc", ln.Addr().String(), "submittedDate:[2020 TO 2021]")
	require.NoError(t, err)
	assert.Equal(t, "submittedDate:[202001010000 TO 202112312359]\n", stdout)

	_, stderr, err := run(t, "compile", "--rpc", ln.Addr().String(), "*")
	require.Error(t, err)
	assert.Contains(t, stderr, "LeadingWildcard")
}

func TestExplainCmd(t *testing.T) {
	stdout, _, err := run(t, "explain", "ti:(a OR b)")
	require.NoError(t, err)
	assert.Contains(t, stdout, "FIELD_PREFIX")
	assert.Contains(t, stdout, "compile.parse")
	assert.Contains(t, stdout, "ti:a OR ti:b")
}

func TestReplayCmd(t *testing.T) {
	log := strings.Join([]string{
		`1.2.3.4 - - [02/Oct/2023:10:00:00 +0000] "GET /api/query?search_query=ti:a HTTP/1.1" 200 100`,
		`1.2.3.4 - - [02/Oct/2023:10:00:01 +0000] "GET /api/query?search_query=foo:a HTTP/1.1" 200 100`,
		`1.2.3.4 - - [02/Oct/2023:10:00:02 +0000] "GET /api/query?search_query=AND+AND HTTP/1.1" 200 100`,
	}, "\n")
	path := filepath.Join(t.TempDir(), "access.log")
	require.NoError(t, os.WriteFile(path, []byte(log), 0o644))

	stdout, _, err := run(t, "replay", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "replayed 3")
	assert.Contains(t, stdout, "UnknownField")
	assert.Contains(t, stdout, "missing operand")

	stdout, _, err = run(t, "--json", "replay", path)
	require.NoError(t, err)
	var report replay.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, map[string]int{"compiled": 1, "empty": 1, "UnknownField": 1}, report.Outcomes)
}

func TestIndexAndSearchCmd(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "papers.jsonl")
	f, err := os.Create(seed)
	require.NoError(t, err)
	enc := json.NewEncoder(f)
	for _, p := range []indexer.Paper{
		{ID: "2101.00001", Version: 1, Title: "Checkerboard lattices", Categories: []string{"cond-mat"},
			Submitted: time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)},
		{ID: "2101.00001", Version: 2, Title: "Checkerboard lattices", Categories: []string{"cond-mat"},
			Submitted: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "2102.00002", Version: 1, Title: "Pineapples in orbit", Categories: []string{"physics.pop-ph"},
			Submitted: time.Date(2021, 2, 15, 0, 0, 0, 0, time.UTC)},
	} {
		require.NoError(t, enc.Encode(p))
	}
	require.NoError(t, f.Close())

	indexPath := filepath.Join(dir, "papers.bleve")
	stdout, _, err := run(t, "index", "--index", indexPath, seed)
	require.NoError(t, err)
	assert.Contains(t, stdout, "indexed 3 papers")

	stdout, _, err = run(t, "--json", "search", "--index", indexPath, "ti:checkerboard")
	require.NoError(t, err)
	var resp proto.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "2101.00001v2", resp.Hits[0].ID)

	stdout, _, err = run(t, "search", "--index", indexPath, "--id-list", "2101.00001v1,2102.00002")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 total hits")
	assert.Contains(t, stdout, "2101.00001v1")
}

func TestIndexCmd_RequiresPath(t *testing.T) {
	_, _, err := run(t, "index", "papers.jsonl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index path is required")
}

func TestVersionCmd(t *testing.T) {
	stdout, _, err := run(t, "--json", "version")
	require.NoError(t, err)
	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestCacheInvalidate_RequiresKafka(t *testing.T) {
	t.Setenv("CQ_KAFKA_ENABLED", "false")
	_, _, err := run(t, "cache", "invalidate", "--reason", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka is disabled")
}

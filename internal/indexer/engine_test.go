package indexer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/config"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func paper(id string, version int) Paper {
	return Paper{
		ID:         id,
		Version:    version,
		Title:      "Paper " + id,
		Authors:    []string{"A. Author"},
		Abstract:   "abstract",
		Categories: []string{"hep-th"},
		Submitted:  date("2021-01-04"),
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(config.IndexConfig{BatchSize: 2}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(p *Paper)
		field  string
	}{
		{"valid new style", func(p *Paper) {}, ""},
		{"valid old style", func(p *Paper) { p.ID = "hep-th/9901001" }, ""},
		{"valid old style with subject class", func(p *Paper) { p.ID = "math.AG/0601001" }, ""},
		{"versioned id", func(p *Paper) { p.ID = "2101.00001v1" }, "id"},
		{"garbage id", func(p *Paper) { p.ID = "paper-1" }, "id"},
		{"zero version", func(p *Paper) { p.Version = 0 }, "version"},
		{"blank title", func(p *Paper) { p.Title = "   " }, "title"},
		{"long title", func(p *Paper) { p.Title = strings.Repeat("x", maxTitleLength+1) }, "title"},
		{"no submitted date", func(p *Paper) { p.Submitted = time.Time{} }, "submitted_date"},
		{"updated before submitted", func(p *Paper) { p.Updated = date("2020-01-01") }, "updated_date"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := paper("2101.00001", 1)
			tc.mutate(&p)
			err := Validate(p)
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tc.field)
		})
	}
}

func TestMarkCurrent(t *testing.T) {
	papers := []Paper{
		paper("2101.00001", 1),
		paper("2101.00001", 3),
		paper("2101.00001", 2),
		paper("2102.00002", 1),
		paper("2103.00003", 1),
		paper("2103.00003", 2),
	}
	// An explicit flag wins over the version number.
	papers[4].IsCurrent = true

	markCurrent(papers)

	current := map[string]bool{}
	for _, p := range papers {
		if p.IsCurrent {
			current[p.VersionedID()] = true
		}
	}
	assert.Equal(t, map[string]bool{
		"2101.00001v3": true,
		"2102.00002v1": true,
		"2103.00003v1": true,
	}, current)
}

func TestEngine_Index(t *testing.T) {
	e := newEngine(t)

	bad := paper("nope", 1)
	n, err := e.Index(context.Background(),
		paper("2101.00001", 1), paper("2101.00001", 2), paper("2102.00002", 1), bad)
	assert.Equal(t, 3, n)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "nope", ve.ID)

	count, err := e.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestEngine_LoadJSONL(t *testing.T) {
	e := newEngine(t)

	line, err := json.Marshal(paper("2101.00001", 1))
	require.NoError(t, err)
	input := string(line) + "\n\n{not json}\n" + `{"id":"2102.00002","version":1}` + "\n"

	n, err := e.LoadJSONL(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "undecodable and invalid lines are skipped")
}

func TestEngine_LoadFile_Gzip(t *testing.T) {
	e := newEngine(t)

	path := filepath.Join(t.TempDir(), "papers.jsonl.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)
	for _, p := range []Paper{paper("2101.00001", 1), paper("2102.00002", 1), paper("2103.00003", 1)} {
		require.NoError(t, enc.Encode(p))
	}
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	n, err := e.LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestEngine_LoadFile_Missing(t *testing.T) {
	e := newEngine(t)
	_, err := e.LoadFile(context.Background(), filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.Error(t, err)
}

func TestEngine_PersistentPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers.bleve")

	e, err := NewEngine(config.IndexConfig{Path: path}, nil)
	require.NoError(t, err)
	_, err = e.Index(context.Background(), paper("2101.00001", 1))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	reopened, err := NewEngine(config.IndexConfig{Path: path}, nil)
	require.NoError(t, err)
	defer reopened.Close()
	count, err := reopened.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

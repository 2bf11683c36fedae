// Package indexer maintains a bleve index of arXiv paper metadata. It is the
// reference engine that compiled classic queries are executed against.
package indexer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fastjson"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/metrics"
)

const defaultBatchSize = 500

// keywordFields are indexed verbatim: queries on them match whole values.
var keywordFields = map[ast.Field]bool{
	ast.ID:           true,
	ast.Category:     true,
	ast.ReportNumber: true,
	ast.DOI:          true,
}

// IsKeyword reports whether f is indexed as a single unanalysed token.
func IsKeyword(f ast.Field) bool {
	return keywordFields[f]
}

// StoredFields are returned with every hit.
var StoredFields = []string{FieldVersionedID, ast.Title.String(), ast.SubmittedDate.String()}

type Engine struct {
	index   bleve.Index
	cfg     config.IndexConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine opens the index at cfg.Path, creating it if missing. An empty
// path builds an in-memory index. m may be nil.
func NewEngine(cfg config.IndexConfig, m *metrics.Metrics) (*Engine, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	idx, err := open(cfg.Path)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		index:   idx,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
	e.updateDocCount()
	return e, nil
}

func open(path string) (bleve.Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("creating in-memory index: %w", err)
		}
		return idx, nil
	}
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening index at %s: %w", path, err)
	}
	return idx, nil
}

func buildMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false

	for _, f := range []ast.Field{ast.Title, ast.Author, ast.Abstract, ast.Comment, ast.JournalRef} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.IncludeInAll = false
		fm.Store = f == ast.Title
		doc.AddFieldMappingsAt(f.String(), fm)
	}
	for f := range keywordFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.IncludeInAll = false
		fm.Store = false
		doc.AddFieldMappingsAt(f.String(), fm)
	}

	versioned := bleve.NewTextFieldMapping()
	versioned.Analyzer = keyword.Name
	versioned.IncludeInAll = false
	doc.AddFieldMappingsAt(FieldVersionedID, versioned)

	current := bleve.NewBooleanFieldMapping()
	current.IncludeInAll = false
	current.Store = false
	doc.AddFieldMappingsAt(FieldIsCurrent, current)

	for _, f := range []ast.Field{ast.SubmittedDate, ast.LastUpdatedDate} {
		dm := bleve.NewDateTimeFieldMapping()
		dm.IncludeInAll = false
		dm.Store = f == ast.SubmittedDate
		doc.AddFieldMappingsAt(f.String(), dm)
	}

	im.DefaultMapping = doc
	return im
}

// Index validates and adds papers in batches, keyed by versioned ID. When no
// version of a paper is flagged current, its highest version becomes
// current. Invalid papers are skipped and reported in the returned error.
func (e *Engine) Index(ctx context.Context, papers ...Paper) (int, error) {
	valid := make([]Paper, 0, len(papers))
	var invalid []error
	for _, p := range papers {
		if err := Validate(p); err != nil {
			invalid = append(invalid, err)
			continue
		}
		valid = append(valid, p)
	}
	markCurrent(valid)

	indexed := 0
	batch := e.index.NewBatch()
	flush := func() error {
		if batch.Size() == 0 {
			return nil
		}
		n := batch.Size()
		if err := e.index.Batch(batch); err != nil {
			return fmt.Errorf("writing batch: %w", err)
		}
		indexed += n
		e.metrics.ObserveIndexed(n)
		batch.Reset()
		return nil
	}

	for _, p := range valid {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if err := batch.Index(p.VersionedID(), p.document()); err != nil {
			return indexed, fmt.Errorf("adding %s to batch: %w", p.VersionedID(), err)
		}
		if batch.Size() >= e.cfg.BatchSize {
			if err := flush(); err != nil {
				return indexed, err
			}
		}
	}
	if err := flush(); err != nil {
		return indexed, err
	}
	e.updateDocCount()

	e.logger.Info("papers indexed", "indexed", indexed, "skipped", len(invalid))
	return indexed, errors.Join(invalid...)
}

// LoadJSONL reads one paper object per line and indexes them. Lines may be
// Paper JSON or arXiv metadata snapshot entries. Blank lines are ignored;
// undecodable or invalid lines are skipped with a warning.
func (e *Engine) LoadJSONL(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		parser fastjson.Parser
		papers []Paper
	)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		decoded, err := decodeLine(&parser, text)
		if err != nil {
			e.logger.Warn("skipping undecodable paper", "line", line, "error", err)
			continue
		}
		papers = append(papers, decoded...)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("reading papers: %w", err)
	}

	n, err := e.Index(ctx, papers...)
	if err != nil && ctx.Err() == nil {
		e.logger.Warn("some papers were not indexed", "error", err)
		err = nil
	}
	return n, err
}

// LoadFile indexes a JSON-lines seed file, which may be gzip-compressed.
func (e *Engine) LoadFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("opening gzip seed file: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return e.LoadJSONL(ctx, r)
}

// Search runs a bleve search request against the index.
func (e *Engine) Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	return e.index.SearchInContext(ctx, req)
}

// DocCount returns the number of indexed paper versions.
func (e *Engine) DocCount() (uint64, error) {
	return e.index.DocCount()
}

func (e *Engine) updateDocCount() {
	if n, err := e.index.DocCount(); err == nil {
		e.metrics.SetIndexSize(n)
	}
}

func (e *Engine) Close() error {
	return e.index.Close()
}

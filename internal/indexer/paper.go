package indexer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
)

// Document field names that have no classic-query prefix.
const (
	FieldVersionedID = "versioned_id"
	FieldIsCurrent   = "is_current"
)

// Paper is one version of an arXiv paper's metadata.
type Paper struct {
	ID           string    `json:"id"`
	Version      int       `json:"version"`
	IsCurrent    bool      `json:"is_current"`
	Title        string    `json:"title"`
	Authors      []string  `json:"authors"`
	Abstract     string    `json:"abstract"`
	Comments     string    `json:"comments,omitempty"`
	JournalRef   string    `json:"journal_ref,omitempty"`
	Categories   []string  `json:"categories"`
	ReportNumber string    `json:"report_num,omitempty"`
	DOI          string    `json:"doi,omitempty"`
	Submitted    time.Time `json:"submitted_date"`
	Updated      time.Time `json:"updated_date"`
}

// VersionedID is the paper ID with its version suffix, e.g. 2101.00001v2.
func (p Paper) VersionedID() string {
	return fmt.Sprintf("%sv%d", p.ID, p.Version)
}

func (p Paper) document() map[string]any {
	updated := p.Updated
	if updated.IsZero() {
		updated = p.Submitted
	}
	return map[string]any{
		ast.ID.String():              p.ID,
		FieldVersionedID:             p.VersionedID(),
		FieldIsCurrent:               p.IsCurrent,
		ast.Title.String():           p.Title,
		ast.Author.String():          p.Authors,
		ast.Abstract.String():        p.Abstract,
		ast.Comment.String():         p.Comments,
		ast.JournalRef.String():      p.JournalRef,
		ast.Category.String():        p.Categories,
		ast.ReportNumber.String():    p.ReportNumber,
		ast.DOI.String():             p.DOI,
		ast.SubmittedDate.String():   p.Submitted,
		ast.LastUpdatedDate.String(): updated,
	}
}

const (
	maxTitleLength    = 1024
	maxAbstractLength = 1 << 16
)

var (
	newStyleID = regexp.MustCompile(`^\d{4}\.\d{4,5}$`)
	oldStyleID = regexp.MustCompile(`^[a-z-]+(\.[A-Z]{2})?/\d{7}$`)
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	ID     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return fmt.Sprintf("invalid paper %q: %s", e.ID, strings.Join(parts, "; "))
}

// Validate checks that a paper can be indexed and queried by every prefix.
func Validate(p Paper) error {
	errs := make(map[string]string)

	if !IsPaperID(p.ID) {
		errs["id"] = "must be a new-style (2101.00001) or old-style (hep-th/9901001) identifier"
	}
	if p.Version < 1 {
		errs["version"] = "must be at least 1"
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		errs["title"] = "title is required"
	} else if len(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if len(p.Abstract) > maxAbstractLength {
		errs["abstract"] = fmt.Sprintf("abstract must be at most %d characters", maxAbstractLength)
	}
	if p.Submitted.IsZero() {
		errs["submitted_date"] = "submitted date is required"
	}
	if !p.Updated.IsZero() && p.Updated.Before(p.Submitted) {
		errs["updated_date"] = "must not precede the submitted date"
	}
	if len(errs) > 0 {
		return &ValidationError{ID: p.ID, Fields: errs}
	}
	return nil
}

// IsPaperID reports whether s is an unversioned arXiv identifier.
func IsPaperID(s string) bool {
	return newStyleID.MatchString(s) || oldStyleID.MatchString(s)
}

// markCurrent flags the highest version of each paper as current, unless the
// input already flags a version of that paper.
func markCurrent(papers []Paper) {
	flagged := make(map[string]bool)
	latest := make(map[string]int)
	for i, p := range papers {
		if p.IsCurrent {
			flagged[p.ID] = true
		}
		if j, ok := latest[p.ID]; !ok || papers[j].Version < p.Version {
			latest[p.ID] = i
		}
	}
	for id, i := range latest {
		if !flagged[id] {
			papers[i].IsCurrent = true
		}
	}
}

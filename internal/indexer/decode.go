package indexer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

// dateLayouts are tried in order for every date field of a seed line.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// decodeLine turns one seed line into paper versions. Two shapes are
// accepted: a Paper as written by encoding/json, and an entry of the arXiv
// metadata snapshot, which lists every version of a paper in one object.
func decodeLine(p *fastjson.Parser, line []byte) ([]Paper, error) {
	v, err := p.ParseBytes(line)
	if err != nil {
		return nil, err
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("expected an object, got %s", v.Type())
	}
	if v.Exists("versions") {
		return snapshotPapers(v)
	}
	paper, err := plainPaper(v)
	if err != nil {
		return nil, err
	}
	return []Paper{paper}, nil
}

func plainPaper(v *fastjson.Value) (Paper, error) {
	p := Paper{
		ID:           str(v, "id"),
		Version:      v.GetInt("version"),
		IsCurrent:    v.GetBool("is_current"),
		Title:        str(v, "title"),
		Authors:      list(v, "authors", splitAuthors),
		Abstract:     str(v, "abstract"),
		Comments:     str(v, "comments"),
		JournalRef:   str(v, "journal_ref"),
		Categories:   list(v, "categories", strings.Fields),
		ReportNumber: str(v, "report_num"),
		DOI:          str(v, "doi"),
	}
	var err error
	if p.Submitted, err = dateField(v, "submitted_date"); err != nil {
		return p, err
	}
	if p.Updated, err = dateField(v, "updated_date"); err != nil {
		return p, err
	}
	return p, nil
}

// snapshotPapers expands a metadata snapshot entry into one Paper per
// version. The last listed version is current, and its creation date is the
// last-updated date of every version.
func snapshotPapers(v *fastjson.Value) ([]Paper, error) {
	versions := v.GetArray("versions")
	if len(versions) == 0 {
		return nil, fmt.Errorf("paper %q lists no versions", str(v, "id"))
	}

	base := Paper{
		ID:           str(v, "id"),
		Title:        collapse(str(v, "title")),
		Abstract:     collapse(str(v, "abstract")),
		Comments:     collapse(str(v, "comments")),
		JournalRef:   str(v, "journal-ref"),
		Categories:   list(v, "categories", strings.Fields),
		ReportNumber: str(v, "report-no"),
		DOI:          str(v, "doi"),
		Authors:      parsedAuthors(v.GetArray("authors_parsed")),
	}
	if len(base.Authors) == 0 {
		base.Authors = list(v, "authors", splitAuthors)
	}

	papers := make([]Paper, len(versions))
	for i, ver := range versions {
		label := str(ver, "version")
		n, err := strconv.Atoi(strings.TrimPrefix(label, "v"))
		if err != nil {
			return nil, fmt.Errorf("paper %q: bad version %q", base.ID, label)
		}
		created, err := dateField(ver, "created")
		if err != nil {
			return nil, fmt.Errorf("paper %q %s: %w", base.ID, label, err)
		}
		p := base
		p.Version = n
		p.Submitted = created
		papers[i] = p
	}
	last := papers[len(papers)-1]
	for i := range papers {
		papers[i].Updated = last.Submitted
	}
	papers[len(papers)-1].IsCurrent = true
	return papers, nil
}

func str(v *fastjson.Value, key string) string {
	return strings.TrimSpace(string(v.GetStringBytes(key)))
}

// list reads key as either an array of strings or one string cut by split.
func list(v *fastjson.Value, key string, split func(string) []string) []string {
	f := v.Get(key)
	if f == nil {
		return nil
	}
	switch f.Type() {
	case fastjson.TypeArray:
		items := f.GetArray()
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s := strings.TrimSpace(string(it.GetStringBytes())); s != "" {
				out = append(out, s)
			}
		}
		return out
	case fastjson.TypeString:
		return split(string(f.GetStringBytes()))
	}
	return nil
}

// splitAuthors cuts "A. One, B. Two and C. Three" into names.
func splitAuthors(s string) []string {
	s = strings.ReplaceAll(collapse(s), " and ", ", ")
	var out []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// parsedAuthors joins [last, first, suffix] triples as "first last suffix".
func parsedAuthors(entries []*fastjson.Value) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		parts := e.GetArray()
		if len(parts) == 0 {
			continue
		}
		var words []string
		for _, i := range []int{1, 0, 2} {
			if i < len(parts) {
				if w := strings.TrimSpace(string(parts[i].GetStringBytes())); w != "" {
					words = append(words, w)
				}
			}
		}
		if len(words) > 0 {
			out = append(out, strings.Join(words, " "))
		}
	}
	return out
}

func dateField(v *fastjson.Value, key string) (time.Time, error) {
	s := str(v, key)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: unrecognised date %q", key, s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

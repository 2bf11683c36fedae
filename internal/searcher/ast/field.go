// Package ast defines the boolean syntax tree produced by the classic query
// parser and consumed by the scope resolver and compiler.
package ast

import "fmt"

// Field is a searchable metadata field of the classic query language.
type Field int

const (
	// FieldNone marks a leaf or group that carries no prefix of its own and
	// inherits the enclosing scope.
	FieldNone Field = iota
	Title
	Author
	Abstract
	Comment
	JournalRef
	Category
	ReportNumber
	ID
	DOI
	All
	SubmittedDate
	LastUpdatedDate
)

type fieldInfo struct {
	name      string
	prefix    string
	textual   bool
	fuzziness bool
	date      bool
}

var fields = map[Field]fieldInfo{
	Title:           {name: "title", prefix: "ti", textual: true, fuzziness: true},
	Author:          {name: "author", prefix: "au", textual: true, fuzziness: true},
	Abstract:        {name: "abstract", prefix: "abs", textual: true, fuzziness: true},
	Comment:         {name: "comment", prefix: "co", textual: true, fuzziness: true},
	JournalRef:      {name: "journal_ref", prefix: "jr", textual: true, fuzziness: true},
	Category:        {name: "category", prefix: "cat", textual: true},
	ReportNumber:    {name: "report_number", prefix: "rn", textual: true},
	ID:              {name: "id", prefix: "id"},
	DOI:             {name: "doi", prefix: "doi", textual: true},
	All:             {name: "all", prefix: "all", fuzziness: true},
	SubmittedDate:   {name: "submitted_date", prefix: "submittedDate", date: true},
	LastUpdatedDate: {name: "last_updated_date", prefix: "lastUpdatedDate", date: true},
}

// prefixes maps every accepted prefix spelling to its field. Prefixes are
// case-sensitive, as in the legacy service.
var prefixes = map[string]Field{
	"ti":              Title,
	"title":           Title,
	"au":              Author,
	"abs":             Abstract,
	"co":              Comment,
	"jr":              JournalRef,
	"cat":             Category,
	"rn":              ReportNumber,
	"id":              ID,
	"doi":             DOI,
	"all":             All,
	"submittedDate":   SubmittedDate,
	"lastUpdatedDate": LastUpdatedDate,
}

// TextualFields is the fan-out target of the all field, in index order.
var TextualFields = []Field{Title, Author, Abstract, Comment, JournalRef, Category, ReportNumber, DOI}

// LookupPrefix resolves a query prefix such as "ti" or "submittedDate".
func LookupPrefix(prefix string) (Field, bool) {
	f, ok := prefixes[prefix]
	return f, ok
}

// ParseField resolves a canonical field name such as "journal_ref".
func ParseField(name string) (Field, bool) {
	for f, info := range fields {
		if info.name == name {
			return f, true
		}
	}
	return FieldNone, false
}

func (f Field) String() string {
	if info, ok := fields[f]; ok {
		return info.name
	}
	if f == FieldNone {
		return "none"
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// Prefix returns the canonical query prefix for f.
func (f Field) Prefix() string {
	return fields[f].prefix
}

func (f Field) IsDate() bool {
	return fields[f].date
}

func (f Field) IsTextual() bool {
	return fields[f].textual
}

// HonoursFuzziness reports whether the legacy engine applied ~n edit
// distances on f. On other fields the modifier is accepted and ignored.
func (f Field) HonoursFuzziness() bool {
	return fields[f].fuzziness
}

// MarshalText encodes f by its canonical name.
func (f Field) MarshalText() ([]byte, error) {
	if _, ok := fields[f]; !ok {
		return nil, fmt.Errorf("marshaling field: unknown field %d", int(f))
	}
	return []byte(f.String()), nil
}

func (f *Field) UnmarshalText(text []byte) error {
	parsed, ok := ParseField(string(text))
	if !ok {
		return fmt.Errorf("unmarshaling field: unknown field %q", text)
	}
	*f = parsed
	return nil
}

package query

import (
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
)

// wireNode is the JSON form of every node type, tagged by Type.
type wireNode struct {
	Type      string      `json:"type"`
	Kind      string      `json:"kind,omitempty"`
	Field     *ast.Field  `json:"field,omitempty"`
	Fields    []ast.Field `json:"fields,omitempty"`
	Value     string      `json:"value,omitempty"`
	Lower     string      `json:"lower,omitempty"`
	Upper     string      `json:"upper,omitempty"`
	Boost     *float32    `json:"boost,omitempty"`
	Fuzziness *uint8      `json:"fuzziness,omitempty"`
	Op        string      `json:"op,omitempty"`
	Left      *wireNode   `json:"left,omitempty"`
	Right     *wireNode   `json:"right,omitempty"`
	Inner     *wireNode   `json:"inner,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// Marshal encodes n as JSON.
func Marshal(n Node) ([]byte, error) {
	w, err := toWire(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// Unmarshal decodes a tree produced by Marshal.
func Unmarshal(data []byte) (Node, error) {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding query tree: %w", err)
	}
	return fromWire(&w)
}

func (m *Match) MarshalJSON() ([]byte, error) { return Marshal(m) }
func (r *Range) MarshalJSON() ([]byte, error) { return Marshal(r) }
func (b *Bool) MarshalJSON() ([]byte, error)  { return Marshal(b) }
func (n *Not) MarshalJSON() ([]byte, error)   { return Marshal(n) }
func (e *Empty) MarshalJSON() ([]byte, error) { return Marshal(e) }

func toWire(n Node) (*wireNode, error) {
	switch v := n.(type) {
	case *Match:
		field := v.Field
		w := &wireNode{Type: "match", Kind: v.Kind.String(), Field: &field, Value: v.Value}
		if v.MultiField() {
			w.Fields = v.Fields
		}
		if v.HasBoost {
			boost := v.Boost
			w.Boost = &boost
		}
		if v.HasFuzziness {
			fuzz := v.Fuzziness
			w.Fuzziness = &fuzz
		}
		return w, nil
	case *Range:
		field := v.Field
		return &wireNode{Type: "range", Kind: v.Kind.String(), Field: &field, Lower: v.Lower, Upper: v.Upper}, nil
	case *Bool:
		left, err := toWire(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := toWire(v.Right)
		if err != nil {
			return nil, err
		}
		return &wireNode{Type: "bool", Op: v.Op.String(), Left: left, Right: right}, nil
	case *Not:
		inner, err := toWire(v.Inner)
		if err != nil {
			return nil, err
		}
		return &wireNode{Type: "not", Inner: inner}, nil
	case *Empty:
		return &wireNode{Type: "empty", Reason: string(v.Reason)}, nil
	}
	return nil, fmt.Errorf("encoding query tree: unsupported node %T", n)
}

func fromWire(w *wireNode) (Node, error) {
	if w == nil {
		return nil, fmt.Errorf("decoding query tree: missing node")
	}
	switch w.Type {
	case "match":
		if w.Field == nil {
			return nil, fmt.Errorf("decoding match: missing field")
		}
		m := &Match{Field: *w.Field, Value: w.Value}
		switch w.Kind {
		case "term":
			m.Kind = MatchTerm
		case "phrase":
			m.Kind = MatchPhrase
		case "pattern":
			m.Kind = MatchPattern
		default:
			return nil, fmt.Errorf("decoding match: unknown kind %q", w.Kind)
		}
		m.Fields = PhysicalFields(m.Field)
		if w.Boost != nil {
			m.Boost, m.HasBoost = *w.Boost, true
		}
		if w.Fuzziness != nil {
			m.Fuzziness, m.HasFuzziness = *w.Fuzziness, true
		}
		return m, nil
	case "range":
		if w.Field == nil {
			return nil, fmt.Errorf("decoding range: missing field")
		}
		r := &Range{Kind: TermRange, Field: *w.Field, Lower: w.Lower, Upper: w.Upper}
		if w.Kind == "date" {
			r.Kind = DateRange
		}
		return r, nil
	case "bool":
		op, ok := ast.ParseBoolOp(w.Op)
		if !ok {
			return nil, fmt.Errorf("decoding bool: unknown operator %q", w.Op)
		}
		left, err := fromWire(w.Left)
		if err != nil {
			return nil, err
		}
		right, err := fromWire(w.Right)
		if err != nil {
			return nil, err
		}
		return &Bool{Op: op, Left: left, Right: right}, nil
	case "not":
		inner, err := fromWire(w.Inner)
		if err != nil {
			return nil, err
		}
		return &Not{Inner: inner}, nil
	case "empty":
		return &Empty{Reason: ast.EmptyReason(w.Reason)}, nil
	}
	return nil, fmt.Errorf("decoding query tree: unknown node type %q", w.Type)
}

// PhysicalFields expands all into the textual fields it searches.
func PhysicalFields(f ast.Field) []ast.Field {
	if f == ast.All {
		out := make([]ast.Field, len(ast.TextualFields))
		copy(out, ast.TextualFields)
		return out
	}
	return []ast.Field{f}
}

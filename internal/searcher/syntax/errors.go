// Package syntax holds the closed set of errors a classic query can fail
// with. Every failed compilation yields exactly one *Error.
package syntax

import (
	"errors"
	"fmt"
)

// Kind classifies a compilation failure.
type Kind int

const (
	UnknownField Kind = iota + 1
	LeadingWildcard
	UnterminatedPhrase
	UnterminatedRange
	ParseError
)

var (
	ErrUnknownField       = errors.New("unknown field")
	ErrLeadingWildcard    = errors.New("leading wildcard")
	ErrUnterminatedPhrase = errors.New("unterminated phrase")
	ErrUnterminatedRange  = errors.New("unterminated range")
	ErrParse              = errors.New("parse error")
)

var kindNames = map[Kind]string{
	UnknownField:       "UnknownField",
	LeadingWildcard:    "LeadingWildcard",
	UnterminatedPhrase: "UnterminatedPhrase",
	UnterminatedRange:  "UnterminatedRange",
	ParseError:         "ParseError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

func (k Kind) sentinel() error {
	switch k {
	case UnknownField:
		return ErrUnknownField
	case LeadingWildcard:
		return ErrLeadingWildcard
	case UnterminatedPhrase:
		return ErrUnterminatedPhrase
	case UnterminatedRange:
		return ErrUnterminatedRange
	default:
		return ErrParse
	}
}

// Error describes where and why a query failed. Pos is a byte offset into
// the original input; Token is the offending source text.
type Error struct {
	Kind  Kind
	Pos   int
	Token string
	Msg   string
}

// Errorf builds an *Error with a formatted message.
func Errorf(kind Kind, pos int, token string, format string, args ...any) *Error {
	return &Error{
		Kind:  kind,
		Pos:   pos,
		Token: token,
		Msg:   fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("%s at position %d near %q: %s", e.Kind, e.Pos, e.Token, e.Msg)
	}
	return fmt.Sprintf("%s at position %d: %s", e.Kind, e.Pos, e.Msg)
}

// Unwrap exposes the sentinel for e.Kind so callers can use errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind.sentinel()
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

package query

import (
	"strconv"
	"strings"
)

// String renders n in canonical classic syntax, for example
// au:"del maestro" AND (ti:a OR abs:b). Compiling the result yields a tree
// equal to n, except that an Empty node renders as "()" and so recompiles
// with the missing-operand reason.
func String(n Node) string {
	var b strings.Builder
	write(&b, n)
	return b.String()
}

func write(b *strings.Builder, n Node) {
	switch v := n.(type) {
	case *Match:
		b.WriteString(v.Field.Prefix())
		b.WriteByte(':')
		if v.Kind == MatchPhrase {
			b.WriteByte('"')
			b.WriteString(v.Value)
			b.WriteByte('"')
		} else {
			b.WriteString(v.Value)
		}
		if v.HasBoost {
			b.WriteByte('^')
			b.WriteString(strconv.FormatFloat(float64(v.Boost), 'f', -1, 32))
		}
		if v.HasFuzziness {
			b.WriteByte('~')
			b.WriteString(strconv.Itoa(int(v.Fuzziness)))
		}
	case *Range:
		b.WriteString(v.Field.Prefix())
		b.WriteString(":[")
		b.WriteString(v.Lower)
		b.WriteString(" TO ")
		b.WriteString(v.Upper)
		b.WriteByte(']')
	case *Bool:
		writeOperand(b, v.Left)
		b.WriteByte(' ')
		b.WriteString(v.Op.String())
		b.WriteByte(' ')
		writeOperand(b, v.Right)
	case *Not:
		b.WriteString("NOT ")
		if isLeaf(v.Inner) {
			write(b, v.Inner)
		} else {
			b.WriteByte('(')
			write(b, v.Inner)
			b.WriteByte(')')
		}
	case *Empty:
		b.WriteString("()")
	}
}

func writeOperand(b *strings.Builder, n Node) {
	if _, ok := n.(*Bool); ok {
		b.WriteByte('(')
		write(b, n)
		b.WriteByte(')')
		return
	}
	write(b, n)
}

func isLeaf(n Node) bool {
	switch n.(type) {
	case *Match, *Range, *Empty:
		return true
	}
	return false
}

package mql

import (
	"strconv"
	"strings"
)

// Encode renders a document tree as compact JSON-style text. Regex
// scalars render in literal form since plain JSON has no regex type.
func Encode(v Value) string {
	var b strings.Builder
	encodeValue(&b, v)
	return b.String()
}

func encodeValue(b *strings.Builder, v Value) {
	switch t := v.(type) {
	case *Object:
		b.WriteByte('{')
		for i, m := range t.Members {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(m.Key))
			b.WriteString(": ")
			encodeValue(b, m.Value)
		}
		b.WriteByte('}')
	case *Array:
		b.WriteByte('[')
		for i, e := range t.Elements {
			if i > 0 {
				b.WriteString(", ")
			}
			encodeValue(b, e)
		}
		b.WriteByte(']')
	case *Scalar:
		switch t.Kind {
		case ScalarNull:
			b.WriteString("null")
		case ScalarBool:
			b.WriteString(strconv.FormatBool(t.Bool))
		case ScalarInt:
			b.WriteString(strconv.FormatInt(t.Int, 10))
		case ScalarFloat:
			b.WriteString(strconv.FormatFloat(t.Float, 'g', -1, 64))
		case ScalarString:
			b.WriteString(strconv.Quote(t.Str))
		case ScalarRegex:
			b.WriteByte('/')
			b.WriteString(t.Str)
			b.WriteByte('/')
			b.WriteString(t.Options)
		}
	default:
		b.WriteString("null")
	}
}

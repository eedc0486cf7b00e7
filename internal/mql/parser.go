package mql

import (
	"regexp"
	"strconv"
	"strings"

	"mqleval/internal/domain"
)

// Kind classifies the two accepted query shapes.
type Kind int

// Query kinds.
const (
	KindFind Kind = iota
	KindAggregate
)

// Stage is one pipeline stage. For find queries the filter, projection,
// sort, and limit arguments are synthesized into pseudo-stages so the
// rest of the engine treats both shapes uniformly.
type Stage struct {
	Op   string  // operator name without '$' ("match", "group", ...)
	Body Value   // operator payload
	Doc  *Object // full stage document as written; nil for synthesized stages
}

// Query is a parsed MQL statement.
type Query struct {
	Kind       Kind
	Collection string
	Stages     []Stage
}

var wsRun = regexp.MustCompile(`\s+`)

// NormalizeWhitespace collapses whitespace runs to single spaces and
// trims; used for exact-match comparison and cache keys.
func NormalizeWhitespace(s string) string {
	return wsRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// ParseQuery parses MQL text of the shape
// db.<collection>.find(<filter>[, <projection>])[.sort(<doc>)][.limit(<n>)]
// or db.<collection>.aggregate(<pipeline>), with an optional trailing
// .toArray() and semicolon. It returns a ParseError when the text
// matches neither shape; it never panics.
func ParseQuery(text string) (*Query, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimSuffix(s, ";")
	s = strings.TrimSpace(s)

	if !strings.HasPrefix(s, "db.") {
		return nil, domain.ErrParse("query must start with db.<collection>")
	}
	rest := s[len("db."):]

	collection, rest, err := readIdentUpTo(rest, '.')
	if err != nil {
		return nil, domain.ErrParse("missing collection name")
	}
	method, rest, err := readIdentUpTo(rest, '(')
	if err != nil {
		return nil, domain.ErrParse("missing method call on collection %q", collection)
	}

	args, rest, err := readCallArgs(rest)
	if err != nil {
		return nil, err
	}

	switch method {
	case "find":
		return parseFind(collection, args, rest)
	case "aggregate":
		return parseAggregate(collection, args, rest)
	default:
		return nil, domain.ErrParse("unsupported method %q", method)
	}
}

// readIdentUpTo consumes an identifier terminated by sep and returns
// (ident, remainder-after-sep).
func readIdentUpTo(s string, sep byte) (string, string, error) {
	i := 0
	for i < len(s) && (isLetter(s[i]) || isDigit(s[i]) || s[i] == '_') {
		i++
	}
	if i == 0 || i >= len(s) || s[i] != sep {
		return "", "", domain.ErrParse("expected identifier before %q", string(sep))
	}
	return s[:i], s[i+1:], nil
}

// readCallArgs scans a balanced argument list starting just after the
// opening parenthesis, respecting nested brackets, quoted strings, and
// regex literals. Returns (argument text, remainder-after-close-paren).
func readCallArgs(s string) (string, string, error) {
	depth := 1
	i := 0
	for i < len(s) {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[:i]), s[i+1:], nil
			}
		case '"', '\'':
			j, ok := skipQuoted(s, i)
			if !ok {
				return "", "", domain.ErrParse("unterminated string in arguments")
			}
			i = j
		}
		i++
	}
	return "", "", domain.ErrParse("unbalanced parentheses in arguments")
}

// skipQuoted returns the index of the closing quote matching s[i].
func skipQuoted(s string, i int) (int, bool) {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j, true
		}
	}
	return 0, false
}

func parseFind(collection, args, rest string) (*Query, error) {
	filter, projection, err := decodeFindArgs(args)
	if err != nil {
		return nil, err
	}

	q := &Query{Kind: KindFind, Collection: collection}
	if filter.Len() > 0 {
		q.Stages = append(q.Stages, Stage{Op: "match", Body: filter})
	}
	if projection != nil && projection.Len() > 0 {
		q.Stages = append(q.Stages, Stage{Op: "project", Body: projection})
	}

	// Chained .sort(...), .limit(n), .toArray()
	for {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		if !strings.HasPrefix(rest, ".") {
			return nil, domain.ErrParse("unexpected trailing text %q", rest)
		}
		method, after, err := readIdentUpTo(rest[1:], '(')
		if err != nil {
			return nil, domain.ErrParse("malformed chained call after find")
		}
		callArgs, after, err := readCallArgs(after)
		if err != nil {
			return nil, err
		}
		rest = after

		switch method {
		case "sort":
			doc, err := DecodeDocument(callArgs)
			if err != nil {
				return nil, err
			}
			q.Stages = append(q.Stages, Stage{Op: "sort", Body: doc})
		case "limit":
			n, err := strconv.ParseInt(strings.TrimSpace(callArgs), 10, 64)
			if err != nil {
				return nil, domain.ErrParse("invalid limit argument %q", callArgs)
			}
			q.Stages = append(q.Stages, Stage{Op: "limit", Body: Int(n)})
		case "skip":
			n, err := strconv.ParseInt(strings.TrimSpace(callArgs), 10, 64)
			if err != nil {
				return nil, domain.ErrParse("invalid skip argument %q", callArgs)
			}
			q.Stages = append(q.Stages, Stage{Op: "skip", Body: Int(n)})
		case "toArray", "pretty":
			// Result materialization; no semantic content.
		default:
			return nil, domain.ErrParse("unsupported chained call .%s()", method)
		}
	}

	return q, nil
}

// decodeFindArgs decodes "filter[, projection]". The argument text is
// wrapped in brackets and decoded as an array so that the top-level
// comma separates the two documents; if that fails, the structural
// repair pass re-segments "}, {"-joined fragments.
func decodeFindArgs(args string) (*Object, *Object, error) {
	if strings.TrimSpace(args) == "" {
		return &Object{}, nil, nil
	}

	arr, err := DecodeArray("[" + args + "]")
	if err != nil {
		arr, err = repairFindArgs(args)
		if err != nil {
			return nil, nil, err
		}
	}

	if len(arr.Elements) == 0 {
		return &Object{}, nil, nil
	}
	filter, ok := arr.Elements[0].(*Object)
	if !ok {
		return nil, nil, domain.ErrParse("find filter is not a document")
	}
	var projection *Object
	if len(arr.Elements) > 1 {
		// A malformed projection is dropped rather than failing the
		// whole query, matching the permissive decode policy.
		projection, _ = arr.Elements[1].(*Object)
	}
	return filter, projection, nil
}

// repairFindArgs re-segments "}, {"-joined fragments, normalizing the
// outer braces of the first and last fragment, and retries the decode.
func repairFindArgs(args string) (*Array, error) {
	parts := strings.Split(args, "}, {")
	if len(parts) < 2 {
		return nil, domain.ErrParse("find arguments failed all decode attempts")
	}
	parts[0] = strings.TrimPrefix(strings.TrimSpace(parts[0]), "{")
	last := len(parts) - 1
	parts[last] = strings.TrimSuffix(strings.TrimSpace(parts[last]), "}")
	rebuilt := "[{" + strings.Join(parts, "}, {") + "}]"
	return DecodeArray(rebuilt)
}

func parseAggregate(collection, args, rest string) (*Query, error) {
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, ".toArray()")
	if strings.TrimSpace(rest) != "" {
		return nil, domain.ErrParse("unexpected trailing text %q after aggregate", rest)
	}

	pipeline, err := DecodeArray(args)
	if err != nil {
		return nil, err
	}

	q := &Query{Kind: KindAggregate, Collection: collection}
	for _, elem := range pipeline.Elements {
		doc, ok := elem.(*Object)
		if !ok {
			return nil, domain.ErrParse("pipeline stage is not a document")
		}
		op, body := stageOperator(doc)
		q.Stages = append(q.Stages, Stage{Op: op, Body: body, Doc: doc})
	}
	return q, nil
}

// stageOperator returns the first $-prefixed key of a stage document,
// stripped of its prefix, with its payload. Stages without an operator
// key yield an empty op and contribute nothing downstream.
func stageOperator(doc *Object) (string, Value) {
	for _, m := range doc.Members {
		if strings.HasPrefix(m.Key, "$") {
			return strings.TrimPrefix(m.Key, "$"), m.Value
		}
	}
	return "", nil
}

package mql

import (
	"strconv"
	"strings"

	"mqleval/internal/domain"
)

// Permissive document decoding. Fallback order, in one place:
//
//  1. strict decode — double-quoted keys and strings, no trailing
//     commas, JSON numbers and literals only;
//  2. lenient decode — additionally tolerates unquoted keys,
//     single-quoted strings, trailing commas, bareword literals
//     (True/False/None), and slash-delimited regex literals;
//  3. structural repair — find-argument re-segmentation of
//     "}, {"-joined fragments, applied by the query parser.
//
// Both modes share one grammar; strict mode rejects the lenient
// extensions instead of running a separate backend.

// DecodeDocument parses a single embedded document.
func DecodeDocument(text string) (*Object, error) {
	v, err := DecodeValue(text)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, domain.ErrParse("expected a document, got %T", v)
	}
	return obj, nil
}

// DecodeArray parses an embedded array.
func DecodeArray(text string) (*Array, error) {
	v, err := DecodeValue(text)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(*Array)
	if !ok {
		return nil, domain.ErrParse("expected an array, got %T", v)
	}
	return arr, nil
}

// DecodeValue parses any embedded value, trying strict mode first and
// falling back to lenient mode.
func DecodeValue(text string) (Value, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrParse("empty document text")
	}
	if v, err := decode(text, true); err == nil {
		return v, nil
	}
	return decode(text, false)
}

// decoder parses the document dialect. In strict mode only valid JSON
// is accepted.
type decoder struct {
	lex    *docLexer
	strict bool
	token  docToken
	peek   docToken
}

func decode(text string, strict bool) (Value, error) {
	d := &decoder{lex: newDocLexer(text), strict: strict}
	d.nextToken()
	d.nextToken()

	v, err := d.parseValue()
	if err != nil {
		return nil, err
	}
	if d.token.typ != tokEOF {
		return nil, domain.ErrParse("trailing input at offset %d", d.token.pos)
	}
	return v, nil
}

func (d *decoder) nextToken() {
	d.token = d.peek
	d.peek = d.lex.next()
}

func (d *decoder) parseValue() (Value, error) {
	switch d.token.typ {
	case tokLBrace:
		return d.parseObject()
	case tokLBracket:
		return d.parseArray()
	case tokString:
		s := d.token.literal
		d.nextToken()
		return String(s), nil
	case tokSQString:
		if d.strict {
			return nil, domain.ErrParse("single-quoted string at offset %d", d.token.pos)
		}
		s := d.token.literal
		d.nextToken()
		return String(s), nil
	case tokNumber:
		return d.parseNumber()
	case tokRegex:
		if d.strict {
			return nil, domain.ErrParse("regex literal at offset %d", d.token.pos)
		}
		s := Regex(d.token.literal, d.token.options)
		d.nextToken()
		return s, nil
	case tokIdent:
		return d.parseBareword()
	default:
		return nil, domain.ErrParse("unexpected token %q at offset %d", d.token.literal, d.token.pos)
	}
}

func (d *decoder) parseObject() (Value, error) {
	obj := &Object{}
	d.nextToken() // consume '{'

	for d.token.typ != tokRBrace {
		if d.token.typ == tokEOF {
			return nil, domain.ErrParse("unterminated document")
		}

		key, err := d.parseKey()
		if err != nil {
			return nil, err
		}
		if d.token.typ != tokColon {
			return nil, domain.ErrParse("expected ':' after key %q at offset %d", key, d.token.pos)
		}
		d.nextToken()

		v, err := d.parseValue()
		if err != nil {
			return nil, err
		}
		obj.Members = append(obj.Members, Member{Key: key, Value: v})

		if d.token.typ == tokComma {
			d.nextToken()
			if d.token.typ == tokRBrace && d.strict {
				return nil, domain.ErrParse("trailing comma at offset %d", d.token.pos)
			}
			continue
		}
		if d.token.typ != tokRBrace {
			return nil, domain.ErrParse("expected ',' or '}' at offset %d", d.token.pos)
		}
	}
	d.nextToken() // consume '}'
	return obj, nil
}

func (d *decoder) parseKey() (string, error) {
	switch d.token.typ {
	case tokString:
		key := d.token.literal
		d.nextToken()
		return key, nil
	case tokSQString:
		if d.strict {
			return "", domain.ErrParse("single-quoted key at offset %d", d.token.pos)
		}
		key := d.token.literal
		d.nextToken()
		return key, nil
	case tokIdent:
		if d.strict {
			return "", domain.ErrParse("unquoted key %q at offset %d", d.token.literal, d.token.pos)
		}
		key := d.token.literal
		d.nextToken()
		return key, nil
	case tokNumber:
		if d.strict {
			return "", domain.ErrParse("numeric key at offset %d", d.token.pos)
		}
		key := d.token.literal
		d.nextToken()
		return key, nil
	default:
		return "", domain.ErrParse("expected key at offset %d", d.token.pos)
	}
}

func (d *decoder) parseArray() (Value, error) {
	arr := &Array{}
	d.nextToken() // consume '['

	for d.token.typ != tokRBracket {
		if d.token.typ == tokEOF {
			return nil, domain.ErrParse("unterminated array")
		}

		v, err := d.parseValue()
		if err != nil {
			return nil, err
		}
		arr.Elements = append(arr.Elements, v)

		if d.token.typ == tokComma {
			d.nextToken()
			if d.token.typ == tokRBracket && d.strict {
				return nil, domain.ErrParse("trailing comma at offset %d", d.token.pos)
			}
			continue
		}
		if d.token.typ != tokRBracket {
			return nil, domain.ErrParse("expected ',' or ']' at offset %d", d.token.pos)
		}
	}
	d.nextToken() // consume ']'
	return arr, nil
}

func (d *decoder) parseNumber() (Value, error) {
	lit := d.token.literal
	d.nextToken()
	if !strings.ContainsAny(lit, ".eE") {
		if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return Int(n), nil
		}
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, domain.ErrParse("invalid number %q", lit)
	}
	return Float(f), nil
}

// parseBareword handles unquoted value tokens. JSON literals are always
// accepted; in lenient mode Python-style spellings and arbitrary
// barewords (treated as strings) are tolerated too.
func (d *decoder) parseBareword() (Value, error) {
	lit := d.token.literal
	pos := d.token.pos
	d.nextToken()

	switch lit {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "null":
		return Null(), nil
	}
	if d.strict {
		return nil, domain.ErrParse("unexpected literal %q at offset %d", lit, pos)
	}
	switch lit {
	case "True":
		return Bool(true), nil
	case "False":
		return Bool(false), nil
	case "None", "undefined":
		return Null(), nil
	}
	return String(lit), nil
}

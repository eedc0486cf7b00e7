package mql

import "strings"

// docTokenType classifies document tokens.
type docTokenType int

const (
	tokEOF docTokenType = iota
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokColon
	tokComma
	tokString // double-quoted
	tokSQString
	tokIdent // unquoted key or bareword
	tokNumber
	tokRegex
	tokIllegal
)

// docToken is one lexical token of an embedded document.
type docToken struct {
	typ     docTokenType
	literal string
	options string // regex flags
	pos     int
}

// docLexer tokenizes the JSON-like document dialect embedded in MQL
// text: strict JSON plus unquoted keys, single-quoted strings, and
// slash-delimited regex literals.
type docLexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	prev    docTokenType
}

func newDocLexer(input string) *docLexer {
	l := &docLexer{input: input}
	l.readChar()
	return l
}

func (l *docLexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *docLexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *docLexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// next returns the next token.
func (l *docLexer) next() docToken {
	l.skipWhitespace()

	tok := docToken{pos: l.pos}

	switch l.ch {
	case 0:
		tok.typ = tokEOF
	case '{':
		tok.typ, tok.literal = tokLBrace, "{"
	case '}':
		tok.typ, tok.literal = tokRBrace, "}"
	case '[':
		tok.typ, tok.literal = tokLBracket, "["
	case ']':
		tok.typ, tok.literal = tokRBracket, "]"
	case ':':
		tok.typ, tok.literal = tokColon, ":"
	case ',':
		tok.typ, tok.literal = tokComma, ","
	case '"':
		tok.typ = tokString
		tok.literal = l.readString('"')
	case '\'':
		tok.typ = tokSQString
		tok.literal = l.readString('\'')
	case '/':
		// A slash in value position starts a regex literal; anywhere
		// else it is illegal.
		if l.valuePosition() {
			tok.typ = tokRegex
			tok.literal, tok.options = l.readRegex()
		} else {
			tok.typ, tok.literal = tokIllegal, "/"
		}
	default:
		switch {
		case isDigit(l.ch) || l.ch == '-' || l.ch == '+':
			tok.typ = tokNumber
			tok.literal = l.readNumber()
			l.prev = tok.typ
			return tok
		case isIdentStart(l.ch):
			tok.typ = tokIdent
			tok.literal = l.readIdent()
			l.prev = tok.typ
			return tok
		default:
			tok.typ, tok.literal = tokIllegal, string(l.ch)
		}
	}

	l.readChar()
	l.prev = tok.typ
	return tok
}

// valuePosition reports whether the lexer is positioned where a value
// may begin (after ':', ',', '[' or at the very start).
func (l *docLexer) valuePosition() bool {
	switch l.prev {
	case tokColon, tokComma, tokLBracket:
		return true
	}
	return l.prev == tokEOF && l.pos == 0
}

// readString consumes a quoted string, handling backslash escapes, and
// returns the unescaped content.
func (l *docLexer) readString(quote byte) string {
	var sb strings.Builder
	for {
		l.readChar()
		switch l.ch {
		case 0, quote:
			return sb.String()
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case 'u':
				sb.WriteString(l.readUnicodeEscape())
			case 0:
				return sb.String()
			default:
				sb.WriteByte(l.ch)
			}
		default:
			sb.WriteByte(l.ch)
		}
	}
}

// readUnicodeEscape consumes the four hex digits of a \uXXXX escape.
func (l *docLexer) readUnicodeEscape() string {
	var code rune
	for i := 0; i < 4; i++ {
		c := l.peekChar()
		var d rune
		switch {
		case c >= '0' && c <= '9':
			d = rune(c - '0')
		case c >= 'a' && c <= 'f':
			d = rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = rune(c-'A') + 10
		default:
			return string(code)
		}
		code = code<<4 | d
		l.readChar()
	}
	return string(code)
}

// readRegex consumes /pattern/flags and returns (pattern, flags).
func (l *docLexer) readRegex() (string, string) {
	var pat strings.Builder
	for {
		l.readChar()
		if l.ch == 0 || l.ch == '/' {
			break
		}
		if l.ch == '\\' {
			pat.WriteByte(l.ch)
			l.readChar()
		}
		pat.WriteByte(l.ch)
	}
	var flags strings.Builder
	for isLetter(l.peekChar()) {
		l.readChar()
		flags.WriteByte(l.ch)
	}
	return pat.String(), flags.String()
}

func (l *docLexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) || l.ch == '.' || l.ch == '-' || l.ch == '+' ||
		l.ch == 'e' || l.ch == 'E' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readIdent consumes an unquoted key or bareword. Dots and dollar signs
// are part of identifiers here: keys like "school_bus.School_ID" and
// operators like "$match" appear unquoted in lenient input.
func (l *docLexer) readIdent() string {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isIdentStart(ch byte) bool {
	return isLetter(ch) || ch == '_' || ch == '$'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '.'
}

package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokLParen
	tokRParen
	tokEquals
)

var tokenNames = map[tokenKind]string{
	tokEOF:    "end of query",
	tokWord:   "word",
	tokString: "quoted string",
	tokLParen: "'('",
	tokRParen: "')'",
	tokEquals: "'='",
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind tokenKind
	text string // source text as written
	val  string // unquoted value for words and strings
	rng  Range
}

// lex splits query text into tokens. Quoted strings use double quotes with
// Go escapes or single quotes without escapes.
func lex(query string) ([]token, error) {
	var tokens []token
	pt := newPositionTracker()
	i := 0

	next := func() rune {
		ch, w := utf8.DecodeRuneInString(query[i:])
		pt.advance(ch, w)
		i += w
		return ch
	}
	peek := func() rune {
		ch, _ := utf8.DecodeRuneInString(query[i:])
		return ch
	}

	for i < len(query) {
		ch := peek()
		if unicode.IsSpace(ch) {
			next()
			continue
		}

		start, startOffset := pt.mark(), i
		emit := func(kind tokenKind, val string) {
			tokens = append(tokens, token{
				kind: kind,
				text: query[startOffset:i],
				val:  val,
				rng:  Range{Start: start, End: pt.mark()},
			})
		}

		switch ch {
		case '(':
			next()
			emit(tokLParen, "")
		case ')':
			next()
			emit(tokRParen, "")
		case '=':
			next()
			emit(tokEquals, "")
		case '"', '\'':
			val, err := lexQuoted(query, &i, pt, next)
			if err != nil {
				return nil, err
			}
			emit(tokString, val)
		default:
			for i < len(query) && isWordRune(peek()) {
				next()
			}
			emit(tokWord, query[startOffset:i])
		}
	}

	end := pt.mark()
	tokens = append(tokens, token{kind: tokEOF, rng: Range{Start: end, End: end}})
	return tokens, nil
}

func isWordRune(ch rune) bool {
	return !unicode.IsSpace(ch) && !strings.ContainsRune(`()="'`, ch)
}

func lexQuoted(query string, i *int, pt *positionTracker, next func() rune) (string, error) {
	start, startOffset := pt.mark(), *i
	quote := next()

	var b strings.Builder
	for *i < len(query) {
		ch := next()
		switch {
		case ch == quote:
			return b.String(), nil
		case ch == '\\' && quote == '"' && *i < len(query):
			esc := next()
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case '"', '\\':
				b.WriteRune(esc)
			default:
				// unknown escapes keep the backslash, patterns rely on it
				b.WriteRune('\\')
				b.WriteRune(esc)
			}
		default:
			b.WriteRune(ch)
		}
	}

	tok := token{kind: tokString, text: query[startOffset:*i], rng: Range{Start: start, End: pt.mark()}}
	return "", newSyntaxError(query, tok, "unterminated quoted string").
		WithSuggestion("close the string with " + string(quote))
}

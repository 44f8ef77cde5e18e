// Package parser reads the textual query language into filter maps.
//
// Grammar:
//
//	query := term*
//	term  := WORD '=' expr | expr          bare terms filter the hostname
//	expr  := NAME '(' expr* ')' | WORD | STRING
//
// Terms on the same attribute combine with All.
package parser

import (
	"sort"
	"strings"

	"github.com/teranos/serveradmin/serverdb/filter"
	"github.com/teranos/serveradmin/serverdb/schema"
)

type arity int

const (
	arityAny   arity = -1 // zero or more filters
	arityOne   arity = 1  // exactly one filter
	arityValue arity = 2  // exactly one plain value
	arityNone  arity = 0
)

type function struct {
	arity arity
	build func(args []filter.Filter, value schema.Value) (filter.Filter, error)
}

var functions = map[string]function{
	"Any": {arityAny, func(args []filter.Filter, _ schema.Value) (filter.Filter, error) {
		return &filter.Any{Filters: args}, nil
	}},
	"All": {arityAny, func(args []filter.Filter, _ schema.Value) (filter.Filter, error) {
		return &filter.All{Filters: args}, nil
	}},
	"Not": {arityOne, func(args []filter.Filter, _ schema.Value) (filter.Filter, error) {
		return &filter.Not{Filter: args[0]}, nil
	}},
	"Empty": {arityNone, func([]filter.Filter, schema.Value) (filter.Filter, error) {
		return &filter.Empty{}, nil
	}},
	"Contains": {arityValue, func(_ []filter.Filter, v schema.Value) (filter.Filter, error) {
		return &filter.Contains{Value: v}, nil
	}},
	"ContainedBy": {arityValue, func(_ []filter.Filter, v schema.Value) (filter.Filter, error) {
		return &filter.ContainedBy{Network: v}, nil
	}},
	"ContainedOnlyBy": {arityValue, func(_ []filter.Filter, v schema.Value) (filter.Filter, error) {
		return &filter.ContainedOnlyBy{Network: v}, nil
	}},
	"Overlaps": {arityValue, func(_ []filter.Filter, v schema.Value) (filter.Filter, error) {
		return &filter.Overlaps{Network: v}, nil
	}},
	"GreaterThan":         comparison(filter.OpGreaterThan),
	"GreaterThanOrEquals": comparison(filter.OpGreaterThanOrEquals),
	"LessThan":            comparison(filter.OpLessThan),
	"LessThanOrEquals":    comparison(filter.OpLessThanOrEquals),
	"Regexp": {arityValue, func(_ []filter.Filter, v schema.Value) (filter.Filter, error) {
		return filter.NewRegexp(v.String())
	}},
	"StartsWith": {arityValue, func(_ []filter.Filter, v schema.Value) (filter.Filter, error) {
		return &filter.StartsWith{Prefix: v.String()}, nil
	}},
}

func comparison(op filter.Operator) function {
	return function{arityValue, func(_ []filter.Filter, v schema.Value) (filter.Filter, error) {
		return &filter.Comparison{Op: op, Value: v}, nil
	}}
}

// FunctionNames returns the filter function names in sorted order.
func FunctionNames() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// regexpChars mark a bare term as a hostname pattern.
const regexpChars = `^$*+?[]{}|\`

type parser struct {
	query  string
	tokens []token
	pos    int
}

// ParseQuery parses query text into a map from attribute id to filter.
// Operands stay Raw until the filters are bound to attributes.
func ParseQuery(query string) (map[string]filter.Filter, error) {
	tokens, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{query: query, tokens: tokens}

	filters := make(map[string]filter.Filter)
	for p.peek().kind != tokEOF {
		attr, f, err := p.term()
		if err != nil {
			return nil, err
		}
		filters[attr] = combine(filters[attr], f)
	}
	return filters, nil
}

func combine(prev, f filter.Filter) filter.Filter {
	switch p := prev.(type) {
	case nil:
		return f
	case *filter.All:
		return &filter.All{Filters: append(append([]filter.Filter{}, p.Filters...), f)}
	}
	return &filter.All{Filters: []filter.Filter{prev, f}}
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) term() (string, filter.Filter, error) {
	first := p.peek()
	if first.kind == tokWord && p.peekAt(1).kind == tokEquals {
		p.next()
		p.next()
		f, err := p.expr()
		if err != nil {
			return "", nil, err
		}
		return first.val, f, nil
	}

	if first.kind == tokWord && p.peekAt(1).kind != tokLParen && strings.ContainsAny(first.val, regexpChars) {
		p.next()
		f, err := filter.NewRegexp(first.val)
		if err != nil {
			return "", nil, newSyntaxError(p.query, first, "invalid hostname pattern: %v", err)
		}
		return schema.AttrHostname, f, nil
	}

	f, err := p.expr()
	if err != nil {
		return "", nil, err
	}
	return schema.AttrHostname, f, nil
}

func (p *parser) expr() (filter.Filter, error) {
	tok := p.next()
	switch tok.kind {
	case tokString:
		return &filter.Equals{Value: schema.Raw(tok.val)}, nil
	case tokWord:
		if p.peek().kind == tokLParen {
			return p.call(tok)
		}
		return &filter.Equals{Value: schema.Raw(tok.val)}, nil
	case tokEOF:
		return nil, newSyntaxError(p.query, tok, "expected a value")
	}
	return nil, newSyntaxError(p.query, tok, "unexpected %s", tok.kind)
}

func (p *parser) call(name token) (filter.Filter, error) {
	fn, ok := functions[name.val]
	if !ok {
		err := newSyntaxError(p.query, name, "unknown filter function %q", name.val)
		for _, s := range suggest(name.val) {
			err.WithSuggestion(s)
		}
		return nil, err
	}
	p.next() // (

	var args []filter.Filter
	var argTokens []token
	for p.peek().kind != tokRParen {
		if p.peek().kind == tokEOF {
			return nil, newSyntaxError(p.query, p.peek(), "missing ')' for %s", name.val).
				WithSuggestion("close the call opened at " + name.rng.String())
		}
		argTokens = append(argTokens, p.peek())
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	closing := p.next()

	var value schema.Value
	switch fn.arity {
	case arityNone:
		if len(args) != 0 {
			return nil, newSyntaxError(p.query, argTokens[0], "%s takes no arguments", name.val)
		}
	case arityOne:
		if len(args) != 1 {
			return nil, newSyntaxError(p.query, spanOr(argTokens, closing), "%s takes exactly one argument", name.val)
		}
	case arityValue:
		if len(args) != 1 {
			return nil, newSyntaxError(p.query, spanOr(argTokens, closing), "%s takes exactly one value", name.val)
		}
		eq, ok := args[0].(*filter.Equals)
		if !ok {
			return nil, newSyntaxError(p.query, argTokens[0], "%s takes a value, not a filter", name.val)
		}
		value = eq.Value
	}

	f, err := fn.build(args, value)
	if err != nil {
		return nil, newSyntaxError(p.query, argTokens[0], "%v", err)
	}
	return f, nil
}

// spanOr returns the second argument token, where the surplus starts, or
// the closing parenthesis when arguments are missing.
func spanOr(args []token, closing token) token {
	if len(args) > 1 {
		return args[1]
	}
	return closing
}

// suggest returns function names that differ from name only by case or
// share a prefix with it.
func suggest(name string) []string {
	lower := strings.ToLower(name)
	var out []string
	for _, candidate := range FunctionNames() {
		lc := strings.ToLower(candidate)
		if lc == lower || (len(lower) >= 3 && strings.HasPrefix(lc, lower[:3])) {
			out = append(out, candidate)
		}
	}
	return out
}

// FormatQuery prints a filter map as query text with sorted keys. The
// output parses back to an equal map.
func FormatQuery(filters map[string]filter.Filter) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	terms := make([]string, len(keys))
	for i, k := range keys {
		terms[i] = k + "=" + filters[k].String()
	}
	return strings.Join(terms, " ")
}

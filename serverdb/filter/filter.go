// Package filter is the filter algebra: composable predicates over
// attribute values with a textual form, in-memory evaluation and a
// translation into SQL predicates for the store.
package filter

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/teranos/serveradmin/serverdb/schema"
)

// Filter is a node of a filter expression.
type Filter interface {
	// String returns the textual form accepted by the query parser.
	String() string
	// Matches evaluates the filter against an attribute value. For multi
	// attributes a leaf filter matches when any element matches; Not
	// negates the result over the whole value.
	Matches(v schema.Value) bool
	// Bind coerces the operands to the attribute's type and rejects
	// filters that do not apply to it.
	Bind(b Binder) (Filter, error)
	// SQL translates the filter into a predicate over t.
	SQL(t Target) (string, []any, error)
}

// Equals matches values equal to Value.
type Equals struct {
	Value schema.Value
}

// Any matches when at least one of Filters matches.
type Any struct {
	Filters []Filter
}

// All matches when every one of Filters matches.
type All struct {
	Filters []Filter
}

// Not negates Filter.
type Not struct {
	Filter Filter
}

// Contains matches addresses and networks containing Value, or text
// containing Value as a substring.
type Contains struct {
	Value schema.Value
}

// ContainedBy matches addresses and networks inside Network.
type ContainedBy struct {
	Network schema.Value
}

// ContainedOnlyBy matches addresses and networks inside Network when no
// narrower network object known to the store lies between them. Matches
// can only check containment; narrowness is decided by SQL.
type ContainedOnlyBy struct {
	Network schema.Value
}

// Overlaps matches addresses and networks sharing any address with Network.
type Overlaps struct {
	Network schema.Value
}

// Operator is a comparison operator.
type Operator string

const (
	OpGreaterThan         Operator = "GreaterThan"
	OpGreaterThanOrEquals Operator = "GreaterThanOrEquals"
	OpLessThan            Operator = "LessThan"
	OpLessThanOrEquals    Operator = "LessThanOrEquals"
)

var operatorSQL = map[Operator]string{
	OpGreaterThan:         ">",
	OpGreaterThanOrEquals: ">=",
	OpLessThan:            "<",
	OpLessThanOrEquals:    "<=",
}

// Comparison matches ordered values against Value.
type Comparison struct {
	Op    Operator
	Value schema.Value
}

// Regexp matches values whose canonical text matches Pattern.
type Regexp struct {
	Pattern string
	re      *regexp.Regexp
}

// StartsWith matches values whose canonical text begins with Prefix.
type StartsWith struct {
	Prefix string
}

// Empty matches unset values.
type Empty struct{}

// NewRegexp compiles pattern into a Regexp filter.
func NewRegexp(pattern string) (*Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, invalidOperand(pattern, "invalid regular expression: %v", err)
	}
	return &Regexp{Pattern: pattern, re: re}, nil
}

// Eq is shorthand for an Equals filter on raw text.
func Eq(raw string) *Equals {
	return &Equals{Value: schema.Raw(raw)}
}

// Textual forms

func (f *Equals) String() string { return quote(f.Value) }

func (f *Any) String() string { return call("Any", f.Filters) }

func (f *All) String() string { return call("All", f.Filters) }

func (f *Not) String() string { return "Not(" + f.Filter.String() + ")" }

func (f *Contains) String() string { return "Contains(" + quote(f.Value) + ")" }

func (f *ContainedBy) String() string { return "ContainedBy(" + quote(f.Network) + ")" }

func (f *ContainedOnlyBy) String() string { return "ContainedOnlyBy(" + quote(f.Network) + ")" }

func (f *Overlaps) String() string { return "Overlaps(" + quote(f.Network) + ")" }

func (f *Comparison) String() string { return string(f.Op) + "(" + quote(f.Value) + ")" }

func (f *Regexp) String() string { return "Regexp(" + quoteText(f.Pattern) + ")" }

func (f *StartsWith) String() string { return "StartsWith(" + quoteText(f.Prefix) + ")" }

func (f *Empty) String() string { return "Empty()" }

func call(name string, filters []Filter) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = f.String()
	}
	return name + "(" + strings.Join(parts, " ") + ")"
}

func quote(v schema.Value) string {
	if v == nil {
		return `""`
	}
	return quoteText(v.String())
}

// quoteText leaves plain words bare and quotes everything the tokenizer
// would split or misread. Only the escapes the tokenizer decodes are
// written; every other byte goes out as is.
func quoteText(s string) string {
	if s != "" && !strings.ContainsAny(s, "()=\"'\\") && strings.IndexFunc(s, unicode.IsSpace) < 0 {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// In-memory evaluation

func anyElement(v schema.Value, pred func(schema.Value) bool) bool {
	for _, e := range schema.Elements(v) {
		if pred(e) {
			return true
		}
	}
	return false
}

func (f *Equals) Matches(v schema.Value) bool {
	return anyElement(v, func(e schema.Value) bool { return schema.Equal(e, f.Value) })
}

func (f *Any) Matches(v schema.Value) bool {
	for _, sub := range f.Filters {
		if sub.Matches(v) {
			return true
		}
	}
	return false
}

func (f *All) Matches(v schema.Value) bool {
	for _, sub := range f.Filters {
		if !sub.Matches(v) {
			return false
		}
	}
	return true
}

func (f *Not) Matches(v schema.Value) bool { return !f.Filter.Matches(v) }

func (f *Contains) Matches(v schema.Value) bool {
	if needle, ok := schema.Range(f.Value); ok {
		return anyElement(v, func(e schema.Value) bool {
			r, ok := schema.Range(e)
			return ok && r.From().Compare(needle.From()) <= 0 && r.To().Compare(needle.To()) >= 0
		})
	}
	return anyElement(v, func(e schema.Value) bool { return strings.Contains(e.String(), f.Value.String()) })
}

func containedBy(network schema.Value) func(schema.Value) bool {
	outer, ok := schema.Range(network)
	return func(e schema.Value) bool {
		r, rok := schema.Range(e)
		return ok && rok && r.From().Compare(outer.From()) >= 0 && r.To().Compare(outer.To()) <= 0
	}
}

func (f *ContainedBy) Matches(v schema.Value) bool { return anyElement(v, containedBy(f.Network)) }

func (f *ContainedOnlyBy) Matches(v schema.Value) bool { return anyElement(v, containedBy(f.Network)) }

func (f *Overlaps) Matches(v schema.Value) bool {
	other, ok := schema.Range(f.Network)
	return anyElement(v, func(e schema.Value) bool {
		r, rok := schema.Range(e)
		return ok && rok && r.Overlaps(other)
	})
}

func (f *Comparison) Matches(v schema.Value) bool {
	return anyElement(v, func(e schema.Value) bool {
		c, ok := schema.Compare(e, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpGreaterThan:
			return c > 0
		case OpGreaterThanOrEquals:
			return c >= 0
		case OpLessThan:
			return c < 0
		case OpLessThanOrEquals:
			return c <= 0
		}
		return false
	})
}

func (f *Regexp) Matches(v schema.Value) bool {
	re := f.re
	if re == nil {
		var err error
		if re, err = regexp.Compile(f.Pattern); err != nil {
			return false
		}
	}
	return anyElement(v, func(e schema.Value) bool { return re.MatchString(e.String()) })
}

func (f *StartsWith) Matches(v schema.Value) bool {
	return anyElement(v, func(e schema.Value) bool { return strings.HasPrefix(e.String(), f.Prefix) })
}

func (f *Empty) Matches(v schema.Value) bool { return schema.IsEmpty(v) }

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/filter"
	"github.com/teranos/serveradmin/serverdb/schema"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  map[string]filter.Filter
	}{
		{
			name:  "attribute values",
			query: "servertype=vm os=bookworm",
			want: map[string]filter.Filter{
				"servertype": filter.Eq("vm"),
				"os":         filter.Eq("bookworm"),
			},
		},
		{
			name:  "bare hostname",
			query: "web01.example",
			want:  map[string]filter.Filter{"hostname": filter.Eq("web01.example")},
		},
		{
			name:  "bare hostname pattern",
			query: "web0[1-3]",
			want:  map[string]filter.Filter{"hostname": &filter.Regexp{Pattern: "web0[1-3]"}},
		},
		{
			name:  "nested functions",
			query: "state=Not(Any(retired \"in maintenance\"))",
			want: map[string]filter.Filter{
				"state": &filter.Not{Filter: &filter.Any{Filters: []filter.Filter{filter.Eq("retired"), filter.Eq("in maintenance")}}},
			},
		},
		{
			name:  "network functions",
			query: "intern_ip=ContainedOnlyBy(10.0.0.0/24)",
			want: map[string]filter.Filter{
				"intern_ip": &filter.ContainedOnlyBy{Network: schema.Raw("10.0.0.0/24")},
			},
		},
		{
			name:  "repeated attribute",
			query: "num_cpu=GreaterThan(2) num_cpu=LessThan(16) num_cpu=Not(7)",
			want: map[string]filter.Filter{
				"num_cpu": &filter.All{Filters: []filter.Filter{
					&filter.Comparison{Op: filter.OpGreaterThan, Value: schema.Raw("2")},
					&filter.Comparison{Op: filter.OpLessThan, Value: schema.Raw("16")},
					&filter.Not{Filter: filter.Eq("7")},
				}},
			},
		},
		{
			name:  "single quotes keep backslashes",
			query: `hostname=Regexp('^web\d+$') tags=Empty()`,
			want: map[string]filter.Filter{
				"hostname": &filter.Regexp{Pattern: `^web\d+$`},
				"tags":     &filter.Empty{},
			},
		},
		{
			name:  "empty query",
			query: "  ",
			want:  map[string]filter.Filter{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuery(tt.query)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for attr, want := range tt.want {
				require.Contains(t, got, attr)
				assert.Equal(t, want.String(), got[attr].String(), attr)
			}
		})
	}
}

func TestParseQuery_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		message   string
		token     string
		startChar int
	}{
		{"unknown function", "os=Bogus(x)", `unknown filter function "Bogus"`, "Bogus", 3},
		{"unterminated string", `os="bookworm`, "unterminated quoted string", `"bookworm`, 3},
		{"missing paren", "os=Any(a b", "missing ')' for Any", "", 10},
		{"missing value", "os=", "expected a value", "", 3},
		{"stray paren", "os=bookworm )", "unexpected ')'", ")", 12},
		{"too many values", "num_cpu=GreaterThan(1 2)", "GreaterThan takes exactly one value", "2", 22},
		{"filter where value expected", "os=Regexp(Empty())", "Regexp takes a value, not a filter", "Empty", 10},
		{"empty takes nothing", "os=Empty(x)", "Empty takes no arguments", "x", 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuery(tt.query)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrQuerySyntax))

			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.message, se.Message)
			assert.Equal(t, tt.token, se.Token)
			assert.Equal(t, 1, se.Range.Start.Line)
			assert.Equal(t, tt.startChar, se.Range.Start.Character)
		})
	}
}

func TestSyntaxError_Suggestions(t *testing.T) {
	_, err := ParseQuery("intern_ip=containedonlyby(10.0.0.0/8)")
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Suggestions, "ContainedOnlyBy")
	assert.Contains(t, se.Error(), "Suggestions: ContainedBy, ContainedOnlyBy")

	terminal := se.FormatError(ErrorContextTerminal)
	assert.Contains(t, terminal, "intern_ip=containedonlyby(10.0.0.0/8)")
	assert.Contains(t, terminal, "^^^^^^^^^^^^^^^")
}

func TestSyntaxError_Multiline(t *testing.T) {
	_, err := ParseQuery("servertype=vm\nos=Nope()")
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, Position{Line: 2, Character: 3, Offset: 17}, se.Range.Start)
	assert.Equal(t, Position{Line: 2, Character: 7, Offset: 21}, se.Range.End)
	assert.Contains(t, se.Error(), "2:3-7")
}

func TestFormatQuery_RoundTrip(t *testing.T) {
	queries := []string{
		"servertype=vm",
		`os="Debian GNU/Linux" state=Not(Any(retired maintenance))`,
		`hostname=Regexp("^web(01|02)$")`,
		"intern_ip=ContainedOnlyBy(10.0.0.0/24) num_cpu=All(GreaterThan(2) LessThanOrEquals(64))",
		`comment=Contains("a \"quoted\" word") tags=Empty()`,
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			first, err := ParseQuery(q)
			require.NoError(t, err)
			text := FormatQuery(first)

			second, err := ParseQuery(text)
			require.NoError(t, err)
			assert.Equal(t, text, FormatQuery(second))
			require.Len(t, second, len(first))
			for attr, f := range first {
				assert.Equal(t, f.String(), second[attr].String())
			}
		})
	}
}

func TestFormatQuery_RoundTripControlCharacters(t *testing.T) {
	filters := map[string]filter.Filter{
		"hostname": &filter.Regexp{Pattern: "^web\\d\x02\r"},
		"os":       &filter.StartsWith{Prefix: "a\rb\u200b\\n"},
		"comment":  filter.Eq("x\vy\a"),
	}
	text := FormatQuery(filters)

	parsed, err := ParseQuery(text)
	require.NoError(t, err, text)
	assert.Equal(t, "^web\\d\x02\r", parsed["hostname"].(*filter.Regexp).Pattern)
	assert.Equal(t, "a\rb\u200b\\n", parsed["os"].(*filter.StartsWith).Prefix)
	assert.Equal(t, text, FormatQuery(parsed))
}

func TestFormatQuery_SortsKeys(t *testing.T) {
	got := FormatQuery(map[string]filter.Filter{
		"servertype": filter.Eq("vm"),
		"hostname":   filter.Eq("web01"),
	})
	assert.Equal(t, "hostname=web01 servertype=vm", got)
}

func TestLex_Positions(t *testing.T) {
	tokens, err := lex("os=\"été\" x")
	require.NoError(t, err)
	require.Len(t, tokens, 5)
	assert.Equal(t, "été", tokens[2].val)
	assert.Equal(t, Position{Line: 1, Character: 3, Offset: 3}, tokens[2].rng.Start)
	assert.Equal(t, Position{Line: 1, Character: 8, Offset: 10}, tokens[2].rng.End)
	assert.Equal(t, 9, tokens[3].rng.Start.Character)
	assert.Equal(t, tokEOF, tokens[4].kind)
}

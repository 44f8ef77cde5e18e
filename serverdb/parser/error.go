package parser

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/serveradmin/errors"
)

// ErrorContext indicates the environment where parser errors will be displayed
type ErrorContext string

const (
	// ErrorContextTerminal renders errors with ANSI colors
	ErrorContextTerminal ErrorContext = "terminal"
	// ErrorContextPlain renders errors without ANSI codes (logs, JSON output)
	ErrorContextPlain ErrorContext = "plain"
)

// SyntaxError is a malformed query. It carries the span of the offending
// token and matches errors.ErrQuerySyntax.
type SyntaxError struct {
	Message     string
	Query       string
	Token       string // offending token text, empty at end of input
	Range       Range
	Suggestions []string
}

func newSyntaxError(query string, tok token, format string, args ...any) *SyntaxError {
	return &SyntaxError{
		Message: fmt.Sprintf(format, args...),
		Query:   query,
		Token:   tok.text,
		Range:   tok.rng,
	}
}

// Error implements error with the plain format.
func (e *SyntaxError) Error() string {
	return e.FormatError(ErrorContextPlain)
}

// Unwrap for errors.Is compatibility
func (e *SyntaxError) Unwrap() error {
	return errors.ErrQuerySyntax
}

// WithSuggestion adds a possible fix.
func (e *SyntaxError) WithSuggestion(suggestion string) *SyntaxError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// FormatError generates context-appropriate error message
func (e *SyntaxError) FormatError(ctx ErrorContext) string {
	if ctx == ErrorContextPlain {
		return e.formatPlainError()
	}
	return e.formatTerminalError()
}

func (e *SyntaxError) formatPlainError() string {
	msg := fmt.Sprintf("%s at %s", e.Message, e.Range)
	if e.Token != "" {
		msg += fmt.Sprintf(" near %q", e.Token)
	}
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(". Suggestions: %s", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// formatTerminalError underlines the offending span in the query line.
func (e *SyntaxError) formatTerminalError() string {
	var b strings.Builder
	b.WriteString(pterm.Red(e.Message))

	if line, ok := sourceLine(e.Query, e.Range.Start.Line); ok {
		width := e.Range.End.Character - e.Range.Start.Character
		if e.Range.End.Line != e.Range.Start.Line || width < 1 {
			width = 1
		}
		fmt.Fprintf(&b, "\n\n  %s\n  %s%s", line,
			strings.Repeat(" ", e.Range.Start.Character),
			pterm.Yellow(strings.Repeat("^", width)))
	}

	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, "\n\n%s", pterm.Green("Suggestions:"))
		for _, s := range e.Suggestions {
			fmt.Fprintf(&b, "\n  • %s", s)
		}
	}
	return b.String()
}

func sourceLine(query string, line int) (string, bool) {
	lines := strings.Split(query, "\n")
	if line < 1 || line > len(lines) {
		return "", false
	}
	return lines[line-1], true
}

package parser

import "fmt"

// Position is a point in query text.
// Uses LSP conventions: 1-based line numbers, 0-based character offsets
type Position struct {
	Line      int `json:"line"`      // 1-based line number
	Character int `json:"character"` // 0-based character offset within line
	Offset    int `json:"offset"`    // 0-based byte offset in entire source
}

// Range is the span of a token from start to end position.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func (r Range) String() string {
	if r.Start.Line == r.End.Line {
		return fmt.Sprintf("%d:%d-%d", r.Start.Line, r.Start.Character, r.End.Character)
	}
	return fmt.Sprintf("%d:%d-%d:%d", r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
}

// positionTracker follows line/column/offset while the lexer consumes runes.
type positionTracker struct {
	line      int // 1-based
	character int // 0-based within line
	offset    int // 0-based in source
}

func newPositionTracker() *positionTracker {
	return &positionTracker{line: 1}
}

// advance moves past one rune of width bytes.
func (pt *positionTracker) advance(ch rune, width int) {
	if ch == '\n' {
		pt.line++
		pt.character = 0
	} else {
		pt.character++
	}
	pt.offset += width
}

func (pt *positionTracker) mark() Position {
	return Position{Line: pt.line, Character: pt.character, Offset: pt.offset}
}

package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/parser"
)

// PrintError writes err for a terminal. Query syntax errors underline the
// offending token; hints of rejections follow the message.
func PrintError(w io.Writer, err error) {
	var syntax *parser.SyntaxError
	if errors.As(err, &syntax) {
		fmt.Fprintln(w, syntax.FormatError(parser.ErrorContextTerminal))
		return
	}
	fmt.Fprintln(w, pterm.Red("Error: ")+err.Error())
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		fmt.Fprintln(w, pterm.Yellow("Hint: ")+strings.Join(hints, "\n      "))
	}
}

// ExitCode is 2 for rejected input and 1 for every other failure.
func ExitCode(err error) int {
	if errors.IsRejection(err) {
		return 2
	}
	return 1
}

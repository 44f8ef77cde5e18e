// Package sym defines the glyphs that mark serveradmin commands in CLI help
// text and log lines. They are stable across output formats.
package sym

// Command glyphs.
const (
	Query  = "⋈" // query: select objects with filters
	Commit = "+" // commit: apply created/changed/deleted batches
	New    = "✦" // new: fresh object with defaults
	FreeIP = "∈" // free-ip: address allocation inside a network
	AM     = "≡" // am: configuration
	DB     = "⊔" // database/storage layer
)

// entry binds a glyph to the command that owns it.
type entry struct {
	glyph       string
	command     string
	description string
}

var registry = []entry{
	{Query, "query", "Select objects with filters"},
	{Commit, "commit", "Apply a batch of creations, changes and deletions"},
	{New, "new", "Show a new object of a servertype with its defaults"},
	{FreeIP, "free-ip", "List free addresses inside a network"},
	{AM, "am", "Configuration"},
	{DB, "db", "Database operations"},
}

// SymbolToCommand maps glyphs to command names.
var SymbolToCommand = map[string]string{}

// CommandToSymbol maps command names to glyphs.
var CommandToSymbol = map[string]string{}

// CommandDescriptions maps command names to one-line descriptions.
var CommandDescriptions = map[string]string{}

func init() {
	for _, e := range registry {
		SymbolToCommand[e.glyph] = e.command
		CommandToSymbol[e.command] = e.glyph
		CommandDescriptions[e.command] = e.description
	}
}

// Short prefixes a cobra Short string with the command's glyph.
func Short(command, text string) string {
	if g, ok := CommandToSymbol[command]; ok {
		return g + " " + text
	}
	return text
}

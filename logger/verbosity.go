package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
//
// These levels control WHAT categories of output are shown, not just log
// severity:
//
//	if logger.ShouldOutput(verbosity, logger.OutputSQL) {
//	    fmt.Fprintln(os.Stderr, q.SQL())
//	}
const (
	VerbosityUser  = 0 // No flags: results and errors only
	VerbosityInfo  = 1 // -v: + commit and migration log lines
	VerbosityDebug = 2 // -vv: + understood query, timing, config
	VerbosityTrace = 3 // -vvv: + compiled SQL
)

// VerbosityToLevel maps verbosity flags (-v, -vv, etc.) to zap log levels
//
//	0 (none)  -> WarnLevel
//	1 (-v)    -> InfoLevel
//	2+ (-vv)  -> DebugLevel
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// OutputCategory defines a category of diagnostic CLI output that can be
// enabled independently of log severity. Diagnostics go to stderr.
type OutputCategory int

const (
	OutputConfig OutputCategory = iota // Database path and verbosity in effect
	OutputQuery                        // The query as understood by the compiler
	OutputTiming                       // Operation timing
	OutputSQL                          // Compiled SQL statements
)

var categoryLevels = map[OutputCategory]int{
	OutputConfig: VerbosityDebug,
	OutputQuery:  VerbosityDebug,
	OutputTiming: VerbosityDebug,
	OutputSQL:    VerbosityTrace,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		return verbosity >= VerbosityTrace
	}
	return verbosity >= minLevel
}

// LevelName returns a human-readable name for verbosity level
func LevelName(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "User"
	case VerbosityInfo:
		return "Info (-v)"
	case VerbosityDebug:
		return "Debug (-vv)"
	case VerbosityTrace:
		return "Trace (-vvv)"
	default:
		if verbosity > VerbosityTrace {
			return "Trace (-vvv+)"
		}
		return "Unknown"
	}
}

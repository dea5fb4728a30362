package disjoint

import (
	"os"

	"github.com/rs/zerolog"
)

// moduleLogger is the structured logger used for a Module's own
// diagnostics. spec.md names no logging requirement for Module itself, but
// Container's background sweep (background.go) does (§7: "the background
// thread wraps its main loop in a catch-all ... aborts the process with a
// log"), and Module shares the same logger shape for consistency.
type moduleLogger struct {
	l zerolog.Logger
}

func newModuleLogger() *moduleLogger {
	return &moduleLogger{l: newLogger()}
}

// newLogger builds the package's default structured logger: JSON lines on
// stderr with a timestamp field, the same shape zerolog is used in across
// the corpus (zUZWqEHF-cocoon, joeycumines-go-utilpkg/logiface-zerolog).
func newLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

package shared

import (
	"os"

	"github.com/charmbracelet/log"
)

// SetupLogger creates a stderr logger at the named level. Unknown levels
// fall back to info.
func SetupLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// DebugLevel returns "debug" when debug is set, otherwise fallback.
func DebugLevel(debug bool, fallback string) string {
	if debug {
		return "debug"
	}
	return fallback
}

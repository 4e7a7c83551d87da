// Package logging holds the shared application logger.
package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Components log through it directly so
// level changes from the CLI apply everywhere, including fallback paths
// that silently lower confidence and must stay observable.
var Log = logrus.New()

// SetLevel configures the global log level from a string.
// Unknown strings fall back to info rather than aborting startup.
func SetLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(logrus.DebugLevel)
	case "info":
		Log.SetLevel(logrus.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(logrus.WarnLevel)
	case "error":
		Log.SetLevel(logrus.ErrorLevel)
	case "fatal":
		Log.SetLevel(logrus.FatalLevel)
	default:
		Log.SetLevel(logrus.InfoLevel)
		Log.Warnf("unknown log level %q, using info", level)
	}
}

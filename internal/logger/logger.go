// Package logger configures the process-wide logrus logger.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures the standard logger and returns an entry tagged with the
// service name.  Production uses JSON lines; everything else uses the text
// formatter with full timestamps.  An unknown level falls back to info.
func Setup(level string, production bool, out io.Writer) *logrus.Entry {
	std := logrus.StandardLogger()
	if out == nil {
		out = os.Stdout
	}
	std.SetOutput(out)

	if production {
		std.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	std.SetLevel(lvl)

	entry := logrus.WithField("service", "event-seat-hold")
	if err != nil && level != "" {
		entry.WithField("level", level).Warn("unknown log level, using info")
	}
	return entry
}

// Package logging configures the logrus logger shared by the CLI and the
// pipeline.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup returns a logger at the given level ("info" when unparseable) with
// a text (full timestamps) or "json" formatter, writing to stderr.
func Setup(level, format string) *logrus.Logger {
	return SetupTo(os.Stderr, level, format)
}

// SetupTo is Setup with an explicit output.
func SetupTo(w io.Writer, level, format string) *logrus.Logger {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.SetOutput(w)
	return logger
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

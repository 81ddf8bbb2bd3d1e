// Package logging configures the structured logger shared by the orchestrator
// and the CLI.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a configured logger writing to stderr so command output on
// stdout stays machine-readable.
func New(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// Discard returns a logger that drops everything, for callers that embed the
// library and bring no logger of their own.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

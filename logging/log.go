// Package logging sets up the diagnostic stream of the CLI.
//
// Everything written through these loggers is meant for a human watching the
// terminal; results that other programs consume are printed to stdout by the
// commands themselves.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing progress records to out
func New(out io.Writer, debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&ProgressFormatter{})
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// Discard returns a logger that drops everything
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// ProgressFormatter renders records the way the CLI prints progress:
// info records are the bare message, warnings and errors carry their level,
// debug records carry a timestamp and their fields.
type ProgressFormatter struct{}

// Format implements logrus.Formatter
func (f *ProgressFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := &bytes.Buffer{}
	switch entry.Level {
	case logrus.InfoLevel:
		b.WriteString(entry.Message)
	case logrus.WarnLevel:
		fmt.Fprintf(b, "%v: %v", warningLogLevel, entry.Message)
	case logrus.DebugLevel, logrus.TraceLevel:
		fmt.Fprintf(b, "%v - %v - %v", entry.Time.Format(timestampFormat), debugLogLevel, entry.Message)
	default:
		fmt.Fprintf(b, "%v: %v", errorLogLevel, entry.Message)
	}
	writeFields(b, entry.Data)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// fields are sorted so records are stable
func writeFields(b *bytes.Buffer, data logrus.Fields) {
	if len(data) == 0 {
		return
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %v=%v", k, data[k])
	}
}

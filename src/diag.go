package jt9decode

// Diagnostics.  Everything that is not a decoded message goes through one
// of these loggers to stderr so that stdout carries nothing but decodes.

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

func newDiagLogger(w io.Writer, level string) (*log.Logger, error) {
	var lvl, err = log.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var logger = log.NewWithOptions(w, log.Options{ //nolint:exhaustruct
		Level:           lvl,
		Prefix:          "jt9decode",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})

	return logger, nil
}

// quietLogger is used whenever a caller does not supply one.
func quietLogger(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}

	return log.New(io.Discard)
}

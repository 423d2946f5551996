package slogx

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

const (
	// KeyLoggerName is the attribute key that names the component emitting a record.
	KeyLoggerName = "logger"
	KeyRunID      = "run_id"
	KeyAttempt    = "attempt"
)

// Error returns an "error" attribute holding err's message. A nil error is rendered as "<nil>".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Stringer renders value with its String method.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// LoggerName tags a logger with the component it belongs to.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// RunID identifies the generation run a record belongs to.
func RunID(id uuid.UUID) slog.Attr {
	return slog.String(KeyRunID, id.String())
}

func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

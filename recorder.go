package hoot

import (
	"context"
	"strings"

	"github.com/casualjim/hoot/executor"
	"github.com/casualjim/hoot/failure"
	"github.com/google/uuid"
)

// Result describes a finished call, handed to the Recorder once the stream has ended.
type Result struct {
	RunID     uuid.UUID
	Model     string
	Text      string
	Tokens    int
	Attempts  int
	State     executor.State
	Err       *failure.Error
	Abandoned bool
}

// Recorder stores the outcome of a call. A failing recorder is logged and never
// affects the stream.
type Recorder interface {
	Record(ctx context.Context, result Result) error
}

type RecorderFunc func(ctx context.Context, result Result) error

func (f RecorderFunc) Record(ctx context.Context, result Result) error {
	return f(ctx, result)
}

// CountTokens approximates token usage as the number of whitespace separated words.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

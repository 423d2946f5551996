package events

import (
	"fmt"
	"time"

	"github.com/casualjim/hoot/failure"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Event is one unit of a generation stream. The set of implementations is closed:
// Token, TerminalError and EndOfStream.
type Event interface {
	streamEvent()
}

// Token is a fragment of generated text, delivered in the order the provider produced it.
type Token struct {
	RunID     uuid.UUID       `json:"run_id"`
	Attempt   int             `json:"attempt"`
	Text      string          `json:"text"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Token) streamEvent() {}

// TerminalError ends a stream that failed.
type TerminalError struct {
	RunID     uuid.UUID       `json:"run_id"`
	Kind      failure.Kind    `json:"type"`
	Message   string          `json:"message"`
	Status    int             `json:"status"`
	Details   string          `json:"details,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (TerminalError) streamEvent() {}

func (e TerminalError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

// EndOfStream ends a stream that completed successfully.
type EndOfStream struct {
	RunID     uuid.UUID       `json:"run_id"`
	Attempts  int             `json:"attempts"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (EndOfStream) streamEvent() {}

// NewToken creates a token event stamped with the current time.
func NewToken(runID uuid.UUID, attempt int, text string) Token {
	return Token{
		RunID:     runID,
		Attempt:   attempt,
		Text:      text,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

// Fail converts a classified failure into the terminal event of a stream.
func Fail(runID uuid.UUID, fe *failure.Error) TerminalError {
	if fe == nil {
		fe = failure.New(failure.Generation, "Generation failed")
	}
	status := fe.Status
	if status == 0 {
		status = fe.Kind.Status()
	}
	return TerminalError{
		RunID:     runID,
		Kind:      fe.Kind,
		Message:   fe.Message,
		Status:    status,
		Details:   fe.Details,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

// End creates the successful terminal event of a stream.
func End(runID uuid.UUID, attempts int) EndOfStream {
	return EndOfStream{
		RunID:     runID,
		Attempts:  attempts,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

// IsTerminal reports whether e ends a stream.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case TerminalError, EndOfStream:
		return true
	default:
		return false
	}
}

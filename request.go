package hoot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/casualjim/hoot/failure"
	"github.com/casualjim/hoot/prompt"
	"github.com/fogfish/opts"
	"github.com/google/uuid"
)

const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000

	maxTemperature = 2.0
)

// GenerationRequest is the input of one logical streaming call. Build it with
// NewRequest and treat it as read-only afterwards.
type GenerationRequest struct {
	Model       string
	History     []prompt.Turn
	Content     string
	Temperature float64
	MaxTokens   int
	// Template overrides prompt.DefaultTemplate when set.
	Template string
	// RunID identifies the call in events and logs. A nil id is replaced by a fresh one.
	RunID uuid.UUID
}

var (
	WithTemperature = opts.ForName[GenerationRequest, float64]("Temperature")
	WithMaxTokens   = opts.ForName[GenerationRequest, int]("MaxTokens")
	WithTemplate    = opts.ForName[GenerationRequest, string]("Template")
	WithRunID       = opts.ForName[GenerationRequest, uuid.UUID]("RunID")
)

// WithHistory sets the prior turns of the conversation. The slice is copied.
func WithHistory(turns ...prompt.Turn) opts.Option[GenerationRequest] {
	return opts.Type[GenerationRequest](func(r *GenerationRequest) error {
		r.History = append([]prompt.Turn(nil), turns...)
		return nil
	})
}

// NewRequest creates a request with the default temperature and token limit.
// An empty model selects DefaultModel. The request is not validated here, so a
// blank content still reaches the stream as a validation error.
func NewRequest(model, content string, options ...opts.Option[GenerationRequest]) (GenerationRequest, error) {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	req := GenerationRequest{
		Model:       model,
		Content:     content,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	if err := opts.Apply(&req, options); err != nil {
		return GenerationRequest{}, err
	}
	return req, nil
}

// Validate checks the request before any provider is contacted. The returned
// error is always a validation failure.
func (r GenerationRequest) Validate() error {
	var err error
	if strings.TrimSpace(r.Content) == "" {
		err = errors.Join(err, errors.New("message content cannot be empty"))
	}
	if r.MaxTokens < 0 {
		err = errors.Join(err, fmt.Errorf("max tokens must not be negative, got %d", r.MaxTokens))
	}
	if r.Temperature < 0 || r.Temperature > maxTemperature {
		err = errors.Join(err, fmt.Errorf("temperature must be between 0 and %g, got %g", maxTemperature, r.Temperature))
	}
	for i, t := range r.History {
		if !t.Role.Valid() {
			err = errors.Join(err, fmt.Errorf("history[%d]: unknown role %q", i, t.Role))
		}
	}
	if err != nil {
		return failure.Wrap(failure.Validation, validationMessage(err), err)
	}
	return nil
}

func validationMessage(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", "; ")
}

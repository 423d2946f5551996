// Package httpstream serves generation streams over HTTP as chunked plain text.
package httpstream

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/casualjim/hoot"
	"github.com/casualjim/hoot/events"
	"github.com/casualjim/hoot/failure"
	"github.com/casualjim/hoot/pkg/slogx"
	"github.com/casualjim/hoot/prompt"
	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// Generator produces the event stream of one request. *hoot.Streamer implements it.
type Generator interface {
	StreamGeneration(ctx context.Context, req hoot.GenerationRequest) iter.Seq[events.Event]
}

// Payload is the JSON body accepted by Handler.
type Payload struct {
	ModelID        string        `json:"modelId"`
	Content        string        `json:"content"`
	Messages       []prompt.Turn `json:"messages"`
	Temperature    *float64      `json:"temperature,omitempty"`
	MaxTokens      *int          `json:"maxTokens,omitempty"`
	PromptTemplate string        `json:"promptTemplate,omitempty"`
}

// Request converts the payload, leaving unset numbers at their defaults.
func (p Payload) Request() (hoot.GenerationRequest, error) {
	options := []opts.Option[hoot.GenerationRequest]{
		hoot.WithHistory(p.Messages...),
		hoot.WithTemplate(p.PromptTemplate),
	}
	if p.Temperature != nil {
		options = append(options, hoot.WithTemperature(*p.Temperature))
	}
	if p.MaxTokens != nil {
		options = append(options, hoot.WithMaxTokens(*p.MaxTokens))
	}
	return hoot.NewRequest(p.ModelID, p.Content, options...)
}

// Handler streams tokens as they are generated. A failure before the first token
// is answered with the error's status and a JSON body; a failure after that ends
// the 200 response with the same JSON object.
type Handler struct {
	Generator Generator
	// Debug includes failure details for every caller.
	Debug bool
	// Privileged reports whether a caller may see failure details.
	Privileged func(*http.Request) bool
	Logger     *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default().With(slogx.LoggerName("httpstream"))
}

func (h *Handler) includeDetails(r *http.Request) bool {
	return h.Debug || (h.Privileged != nil && h.Privileged(r))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		fe := failure.New(failure.Validation, "method not allowed")
		fe.Status = http.StatusMethodNotAllowed
		h.writeFailure(w, r, fe)
		return
	}

	var payload Payload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		h.writeFailure(w, r, failure.Wrap(failure.Validation, "request body must be a JSON object", err))
		return
	}
	req, err := payload.Request()
	if err != nil {
		h.writeFailure(w, r, failure.Wrap(failure.Validation, "invalid request", err))
		return
	}

	h.stream(w, r, h.Generator.StreamGeneration(r.Context(), req))
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, seq iter.Seq[events.Event]) {
	log := h.logger()
	next, stop := iter.Pull(seq)
	defer stop()

	first, ok := next()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if te, isErr := first.(events.TerminalError); isErr {
		h.writeTerminal(w, r, te, te.Status)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	for ev, ok := first, true; ok; ev, ok = next() {
		switch e := ev.(type) {
		case events.Token:
			if _, err := io.WriteString(w, e.Text); err != nil {
				log.DebugContext(r.Context(), "client went away", slogx.RunID(e.RunID), slogx.Error(err))
				return
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				log.DebugContext(r.Context(), "flush failed", slogx.Error(err))
				return
			}
		case events.TerminalError:
			body, err := e.Wire(h.includeDetails(r))
			if err != nil {
				log.ErrorContext(r.Context(), "failed to encode terminal error", slogx.Error(err))
				return
			}
			_, _ = w.Write(body)
			return
		case events.EndOfStream:
			return
		}
	}
}

func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, fe *failure.Error) {
	h.writeTerminal(w, r, events.Fail(uuid.Nil, fe), fe.Status)
}

func (h *Handler) writeTerminal(w http.ResponseWriter, r *http.Request, te events.TerminalError, status int) {
	body, err := te.Wire(h.includeDetails(r))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

package failure

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type rule struct {
	kind  Kind
	terms []string
}

// Order matters: the first rule with a matching term wins.
var rules = []rule{
	{kind: RateLimit, terms: []string{"rate limit", "too many requests", "429"}},
	{kind: Auth, terms: []string{"authentication", "unauthorized", "api key", "401"}},
	{kind: Timeout, terms: []string{"timeout", "timed out"}},
	{kind: Network, terms: []string{"network", "connection"}},
	{kind: NotFound, terms: []string{"model", "not found", "404"}},
}

var messages = map[Kind]string{
	RateLimit: "Rate limit reached. Please try again later.",
	Auth:      "Authentication with the LLM service failed. Please check your credentials.",
	Timeout:   "The LLM service took too long to respond. Please try again.",
	Network:   "Unable to connect to the LLM service. Check your connection.",
	NotFound:  "The requested model was not found or is not available.",
}

// StatusCoder is implemented by errors that carry the HTTP status of a failed provider call.
type StatusCoder interface {
	HTTPStatus() int
}

// KindOf classifies err by its message text. It never panics; an unclassifiable
// error is Generation.
func KindOf(err error) Kind {
	if err == nil {
		return Generation
	}
	if fe, ok := As(err); ok {
		return fe.Kind
	}

	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, term := range r.terms {
			if strings.Contains(msg, term) {
				return r.kind
			}
		}
	}

	return structuralKind(err)
}

func structuralKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var to interface{ Timeout() bool }
	if errors.As(err, &to) && to.Timeout() {
		return Timeout
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		switch code := sc.HTTPStatus(); {
		case code == http.StatusTooManyRequests:
			return RateLimit
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return Auth
		case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
			return Timeout
		case code == http.StatusBadGateway || code == http.StatusServiceUnavailable:
			return Network
		case code == http.StatusNotFound:
			return NotFound
		}
	}
	return Generation
}

// Classify maps err onto a caller-visible Error. Errors that are already classified are
// returned unchanged. Classify returns nil for a nil error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if fe, ok := As(err); ok {
		return fe
	}

	kind := KindOf(err)
	msg, ok := messages[kind]
	if !ok {
		msg = "Generation failed: " + err.Error()
	}
	return Wrap(kind, msg, err)
}

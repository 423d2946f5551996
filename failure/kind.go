// Package failure defines the closed set of failure kinds a generation stream can end with,
// the caller-visible error type that carries them and the classifier that maps raw provider
// failures onto a kind.
//
// Classification is text based: the lower-cased error message is matched against a fixed
// table of substrings. This mirrors how provider SDKs surface their failures (status codes
// and vendor wording end up in the message) and keeps the mapping reproducible for
// compatibility testing. Typed status carriers are only consulted when the text does not
// match anything.
package failure

import "net/http"

// Kind identifies the class of a failure. The set is closed.
type Kind string

const (
	// Validation is a bad request detected before any provider contact.
	Validation Kind = "validation"
	// ModelInit means the provider adapter could not be constructed.
	ModelInit Kind = "model_init_error"
	// RateLimit is a provider throttling failure.
	RateLimit Kind = "rate_limit"
	// Auth is a credentials failure.
	Auth Kind = "auth"
	// Timeout is a provider or transport timeout.
	Timeout Kind = "timeout"
	// Network is a connectivity failure.
	Network Kind = "network"
	// NotFound means the model or endpoint does not exist.
	NotFound Kind = "not_found"
	// Generation is the catch-all.
	Generation Kind = "generation"
	// LLM is a failure reported from inside token generation.
	LLM Kind = "llm_error"
)

var kinds = []Kind{Validation, ModelInit, RateLimit, Auth, Timeout, Network, NotFound, Generation, LLM}

// Kinds returns every known kind.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// ParseKind returns the kind for s, reporting whether s names a known kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

func (k Kind) String() string {
	return string(k)
}

// Status returns the HTTP-equivalent status code for the kind.
func (k Kind) Status() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case RateLimit:
		return http.StatusTooManyRequests
	case Auth:
		return http.StatusUnauthorized
	case Timeout:
		return http.StatusGatewayTimeout
	case Network:
		return http.StatusServiceUnavailable
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a failure of this kind may be retried.
func (k Kind) Retryable() bool {
	return k == RateLimit || k == Timeout
}

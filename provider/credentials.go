package provider

import (
	"errors"
	"fmt"
	"time"
)

// DefaultRequestTimeout bounds a provider call when Credentials leave
// RequestTimeout unset.
const DefaultRequestTimeout = 60 * time.Second

// ErrMissingCredentials is returned by adapter constructors when the API key for
// their vendor is not configured.
var ErrMissingCredentials = errors.New("missing credentials")

// Credentials holds the per-vendor keys, optional endpoint overrides and the
// request timeout. It is passed explicitly to adapter constructors; adapters
// never read the environment.
type Credentials struct {
	OpenAIKey        string
	OpenAIBaseURL    string
	AnthropicKey     string
	AnthropicBaseURL string
	GroqKey          string
	GroqBaseURL      string
	// RequestTimeout bounds one provider call, stream included.
	RequestTimeout time.Duration
}

// Timeout returns RequestTimeout, or DefaultRequestTimeout when it is not positive.
func (c Credentials) Timeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return c.RequestTimeout
}

// Key returns the API key configured for family f.
func (c Credentials) Key(f Family) string {
	switch f {
	case OpenAI:
		return c.OpenAIKey
	case Anthropic:
		return c.AnthropicKey
	case Groq:
		return c.GroqKey
	}
	return ""
}

// BaseURL returns the endpoint override configured for family f, if any.
func (c Credentials) BaseURL(f Family) string {
	switch f {
	case OpenAI:
		return c.OpenAIBaseURL
	case Anthropic:
		return c.AnthropicBaseURL
	case Groq:
		return c.GroqBaseURL
	}
	return ""
}

// Require returns ErrMissingCredentials, naming the family, when its key is empty.
func (c Credentials) Require(f Family) error {
	if c.Key(f) == "" {
		return fmt.Errorf("%w: no api key configured for %s", ErrMissingCredentials, f)
	}
	return nil
}

// Configured lists the families that have a key.
func (c Credentials) Configured() []Family {
	var out []Family
	for _, f := range Families() {
		if c.Key(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

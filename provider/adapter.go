package provider

import "context"

// TokenFunc receives generated text fragments in order. A non-nil error aborts
// the generation.
type TokenFunc func(token string) error

// Params are the generation settings passed to an adapter.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Adapter runs a single streaming generation against one vendor.
type Adapter interface {
	Invoke(ctx context.Context, prompt string, params Params, onToken TokenFunc) (string, error)
}

// AdapterFunc lets an ordinary function act as an Adapter.
type AdapterFunc func(ctx context.Context, prompt string, params Params, onToken TokenFunc) (string, error)

func (f AdapterFunc) Invoke(ctx context.Context, prompt string, params Params, onToken TokenFunc) (string, error) {
	return f(ctx, prompt, params, onToken)
}

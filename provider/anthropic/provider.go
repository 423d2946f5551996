// Package anthropic adapts Claude models to provider.Adapter using the
// Messages streaming API.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/casualjim/hoot/provider"
	"github.com/tidwall/gjson"
)

const (
	// DefaultModel is used when the request names no model.
	DefaultModel   = anthropic.ModelClaude3_7SonnetLatest
	DefaultBaseURL = "https://api.anthropic.com/"
	// DefaultMaxTokens is sent when the request leaves the limit unset; the API requires one.
	DefaultMaxTokens = 1024

	streamErrorPrefix = "received error while streaming: "
)

var _ provider.Adapter = (*Adapter)(nil)

type Adapter struct {
	client  anthropic.Client
	timeout time.Duration
}

// New creates the adapter. Options are applied after the ones derived from creds.
//
// anthropic.NewClient reads ANTHROPIC_BASE_URL, ANTHROPIC_API_KEY and
// ANTHROPIC_AUTH_TOKEN; all three are overridden or removed here.
func New(creds provider.Credentials, options ...option.RequestOption) (*Adapter, error) {
	if err := creds.Require(provider.Anthropic); err != nil {
		return nil, err
	}

	baseURL := creds.AnthropicBaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(creds.AnthropicKey),
		option.WithHeaderDel("Authorization"),
		option.WithMaxRetries(0),
	}
	opts = append(opts, options...)

	return &Adapter{
		client:  anthropic.NewClient(opts...),
		timeout: creds.Timeout(),
	}, nil
}

// Constructor adapts New to provider.Constructor.
func Constructor(creds provider.Credentials) (provider.Adapter, error) {
	a, err := New(creds)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Adapter) buildRequest(prompt string, params provider.Params) anthropic.MessageNewParams {
	model := anthropic.Model(strings.TrimSpace(params.Model))
	if model == "" {
		model = DefaultModel
	}
	maxTokens := int64(params.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(params.Temperature),
	}
}

func (a *Adapter) Invoke(ctx context.Context, prompt string, params provider.Params, onToken provider.TokenFunc) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	strm := a.client.Messages.NewStreaming(ctx, a.buildRequest(prompt, params))
	defer strm.Close()

	var text strings.Builder
	for strm.Next() {
		event := strm.Current()

		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		td, ok := delta.Delta.AsAny().(anthropic.TextDelta)
		if !ok || td.Text == "" {
			continue
		}

		text.WriteString(td.Text)
		if onToken == nil {
			continue
		}
		if err := onToken(td.Text); err != nil {
			return "", err
		}
	}

	if err := strm.Err(); err != nil {
		return "", convertError(err)
	}
	return text.String(), nil
}

func convertError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		raw := apiErr.RawJSON()
		msg := gjson.Get(raw, "error.message").String()
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &provider.APIError{
			Provider:   provider.Anthropic,
			StatusCode: apiErr.StatusCode,
			Message:    msg,
			Raw:        []byte(raw),
		}
	}

	// An error event inside an open stream.
	if data, ok := strings.CutPrefix(err.Error(), streamErrorPrefix); ok {
		msg := gjson.Get(data, "error.message").String()
		if msg == "" {
			msg = data
		}
		return provider.StreamFailure(provider.Anthropic, msg)
	}
	return err
}

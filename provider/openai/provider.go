package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/casualjim/hoot/provider"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultModel is used when the request names no model.
	DefaultModel   = openai.ChatModelGPT3_5Turbo
	DefaultBaseURL = "https://api.openai.com/v1/"
)

var _ provider.Adapter = (*Adapter)(nil)

type Adapter struct {
	client  *openai.Client
	timeout time.Duration
}

// New creates the adapter. Options are applied after the ones derived from creds.
//
// The SDK seeds its client from OPENAI_* environment variables; every setting
// it reads is overridden or removed here so only creds decide where requests go.
func New(creds provider.Credentials, options ...option.RequestOption) (*Adapter, error) {
	if err := creds.Require(provider.OpenAI); err != nil {
		return nil, err
	}

	baseURL := creds.OpenAIBaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(creds.OpenAIKey),
		option.WithHeaderDel("OpenAI-Organization"),
		option.WithHeaderDel("OpenAI-Project"),
		option.WithMaxRetries(0),
	}
	opts = append(opts, options...)

	return &Adapter{
		client:  openai.NewClient(opts...),
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

func (a *Adapter) buildRequest(prompt string, params provider.Params) openai.ChatCompletionNewParams {
	model := strings.TrimSpace(params.Model)
	if model == "" {
		model = DefaultModel
	}

	req := openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		}),
		Model:       openai.F(model),
		N:           openai.Int(1),
		Temperature: openai.Float(params.Temperature),
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = openai.Int(int64(params.MaxTokens))
	}
	return req
}

func (a *Adapter) Invoke(ctx context.Context, prompt string, params provider.Params, onToken provider.TokenFunc) (string, error) {
	// option.WithRequestTimeout cancels the request once the stream is opened,
	// so the deadline lives on ctx for the whole call.
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	strm := a.client.Chat.Completions.NewStreaming(ctx, a.buildRequest(prompt, params))
	defer strm.Close()

	var acc openai.ChatCompletionAccumulator
	var text strings.Builder

	for strm.Next() {
		chunk := strm.Current()
		acc.AddChunk(chunk)

		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			text.WriteString(choice.Delta.Content)
			if onToken == nil {
				continue
			}
			if err := onToken(choice.Delta.Content); err != nil {
				return "", err
			}
		}
	}

	if err := strm.Err(); err != nil {
		return "", convertError(err)
	}

	if len(acc.Choices) > 0 && acc.Choices[0].Message.Content != "" {
		return acc.Choices[0].Message.Content, nil
	}
	return text.String(), nil
}

func convertError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	return &provider.APIError{
		Provider:   provider.OpenAI,
		StatusCode: apiErr.StatusCode,
		Message:    apiErr.Message,
	}
}

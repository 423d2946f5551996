// Package groq streams llama completions from Groq's OpenAI-compatible chat
// endpoint over plain HTTP.
//
// Whatever llama alias was requested, the adapter always asks for Model. Chunks
// may carry their text under choices[0].delta.content or, on some responses,
// under choices[0].message.content; both shapes are accepted and null fragments
// are dropped.
package groq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/casualjim/hoot/provider"
	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	Model          = "llama-3.3-70b-versatile"
	TopP           = 0.95
)

var _ provider.Adapter = (*Adapter)(nil)

type Adapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
	timeout time.Duration
}

var (
	// WithHTTPClient replaces the http.Client used for requests.
	WithHTTPClient = opts.ForName[Adapter, *http.Client]("client")
	// WithTimeout overrides the request timeout taken from the credentials.
	WithTimeout = opts.ForName[Adapter, time.Duration]("timeout")
)

// New creates the adapter.
func New(creds provider.Credentials, options ...opts.Option[Adapter]) (*Adapter, error) {
	if err := creds.Require(provider.Groq); err != nil {
		return nil, err
	}

	a := &Adapter{
		apiKey:  creds.GroqKey,
		baseURL: DefaultBaseURL,
		client:  http.DefaultClient,
		timeout: creds.Timeout(),
	}
	if creds.GroqBaseURL != "" {
		a.baseURL = creds.GroqBaseURL
	}
	if err := opts.Apply(a, options); err != nil {
		return nil, err
	}
	if a.timeout <= 0 {
		return nil, errors.New("groq: timeout must be positive")
	}
	a.baseURL = strings.TrimRight(a.baseURL, "/")
	return a, nil
}

// Constructor adapts New to provider.Constructor.
func Constructor(creds provider.Credentials) (provider.Adapter, error) {
	a, err := New(creds)
	if err != nil {
		return nil, err
	}
	return a, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p"`
	Stream      bool          `json:"stream"`
}

func (a *Adapter) buildRequest(prompt string, params provider.Params) chatRequest {
	return chatRequest{
		Model:       Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		TopP:        TopP,
		Stream:      true,
	}
}

func (a *Adapter) Invoke(ctx context.Context, prompt string, params provider.Params, onToken provider.TokenFunc) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(a.buildRequest(prompt, params))
	if err != nil {
		return "", fmt.Errorf("groq: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("groq: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", provider.ReadAPIError(provider.Groq, resp)
	}

	var text strings.Builder
	events := newSSEReader(resp.Body)
	for {
		data, err := events.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("groq: %w", err)
		}

		token, err := parseChunk(data)
		if err != nil {
			return "", err
		}
		if token == "" {
			continue
		}

		text.WriteString(token)
		if onToken == nil {
			continue
		}
		if err := onToken(token); err != nil {
			return "", err
		}
	}

	return strings.TrimSpace(text.String()), nil
}

func parseChunk(data string) (string, error) {
	if !gjson.Valid(data) {
		return "", fmt.Errorf("groq: malformed chunk: %s", data)
	}

	if e := gjson.Get(data, "error"); e.Exists() && e.Type != gjson.Null {
		msg := e.Get("message").String()
		if msg == "" {
			msg = e.String()
		}
		return "", provider.StreamFailure(provider.Groq, msg)
	}

	for _, path := range []string{"choices.0.delta.content", "choices.0.message.content"} {
		if r := gjson.Get(data, path); r.Type == gjson.String && r.Str != "" {
			return r.String(), nil
		}
	}
	return "", nil
}

package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/casualjim/hoot/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		model string
		want  Family
	}{
		{"llama", Groq},
		{"LLaMA-3.1-70B", Groq},
		{"llama-3.1-70b-versatile", Groq},
		{"llama-3.3-70b-versatile", OpenAI},
		{"claude-3-5-sonnet-latest", Anthropic},
		{"Claude-instant", Anthropic},
		{"gpt-4o-mini", OpenAI},
		{"totally-unknown-model", OpenAI},
		{"", OpenAI},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, FamilyOf(tt.model))
		})
	}
}

func stubAdapter(name string) Adapter {
	return AdapterFunc(func(context.Context, string, Params, TokenFunc) (string, error) {
		return name, nil
	})
}

func TestResolver_Resolve(t *testing.T) {
	var built int
	r := NewResolver(Credentials{OpenAIKey: "k"}, map[Family]Constructor{
		OpenAI: func(c Credentials) (Adapter, error) {
			built++
			if err := c.Require(OpenAI); err != nil {
				return nil, err
			}
			return stubAdapter("openai"), nil
		},
		Anthropic: func(c Credentials) (Adapter, error) {
			return nil, c.Require(Anthropic)
		},
		Groq: func(Credentials) (Adapter, error) {
			panic("kaboom")
		},
	})

	t.Run("default and cache", func(t *testing.T) {
		a, err := r.Resolve("gpt-4o")
		require.NoError(t, err)
		out, err := a.Invoke(context.Background(), "p", Params{}, nil)
		require.NoError(t, err)
		assert.Equal(t, "openai", out)

		_, err = r.Resolve("unknown-model")
		require.NoError(t, err)
		assert.Equal(t, 1, built)
		assert.Equal(t, []Family{OpenAI}, r.Cached())
	})

	t.Run("missing key is model init error", func(t *testing.T) {
		_, err := r.Resolve("claude-3-opus")
		fe, ok := failure.As(err)
		require.True(t, ok)
		assert.Equal(t, failure.ModelInit, fe.Kind)
		assert.Equal(t, 500, fe.Status)
		assert.Contains(t, fe.Message, "claude-3-opus")
		assert.ErrorIs(t, err, ErrMissingCredentials)
		assert.False(t, fe.Retryable())
	})

	t.Run("panicking constructor", func(t *testing.T) {
		_, err := r.Resolve("llama")
		fe, ok := failure.As(err)
		require.True(t, ok)
		assert.Equal(t, failure.ModelInit, fe.Kind)
		assert.Contains(t, fe.Details, "kaboom")
	})
}

func TestResolver_UnregisteredFamily(t *testing.T) {
	r := NewResolver(Credentials{}, nil)
	_, err := r.Resolve("gpt-4o")
	fe, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.ModelInit, fe.Kind)
}

func TestCredentials(t *testing.T) {
	c := Credentials{OpenAIKey: "a", GroqKey: "g", GroqBaseURL: "http://groq"}
	assert.Equal(t, []Family{Groq, OpenAI}, c.Configured())
	assert.Equal(t, "http://groq", c.BaseURL(Groq))
	assert.NoError(t, c.Require(OpenAI))

	err := c.Require(Anthropic)
	assert.True(t, errors.Is(err, ErrMissingCredentials))
	assert.Contains(t, err.Error(), "anthropic")
}

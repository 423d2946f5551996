// Package config reads hoot's settings from the environment, optionally seeded
// from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/casualjim/hoot/executor"
	"github.com/casualjim/hoot/provider"
	"github.com/joho/godotenv"
)

const (
	EnvOpenAIKey        = "OPENAI_API_KEY"
	EnvOpenAIBaseURL    = "OPENAI_BASE_URL"
	EnvAnthropicKey     = "ANTHROPIC_API_KEY"
	EnvAnthropicBaseURL = "ANTHROPIC_BASE_URL"
	EnvGroqKey          = "GROQ_API_KEY"
	EnvGroqBaseURL      = "GROQ_BASE_URL"
	EnvMaxRetries       = "HOOT_MAX_RETRIES"
	EnvRetryDelay       = "HOOT_RETRY_DELAY"
	EnvMaxRetryDelay    = "HOOT_MAX_RETRY_DELAY"
	EnvRequestTimeout   = "HOOT_REQUEST_TIMEOUT"
	EnvNATSURL          = "NATS_URL"
	EnvLogLevel         = "HOOT_LOG_LEVEL"
	EnvDebug            = "HOOT_DEBUG"
)

// ErrNoCredentials is returned when no provider has an api key.
var ErrNoCredentials = errors.New("no provider credentials configured")

type Config struct {
	Credentials provider.Credentials
	Retry       executor.RetryConfig
	// NATSURL enables publishing run events to NATS when set.
	NATSURL  string
	LogLevel slog.Level
	// Debug exposes failure details to callers.
	Debug bool
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads the configuration from the process environment. Values missing
// from the environment are taken from the given dotenv files, or from ./.env when
// no file is named and it exists. The process environment is never modified.
func Load(files ...string) (Config, error) {
	fileEnv, err := readDotenv(files)
	if err != nil {
		return Config{}, err
	}
	return FromEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	})
}

func readDotenv(files []string) (map[string]string, error) {
	if len(files) == 0 {
		env, err := godotenv.Read()
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return env, err
	}

	env, err := godotenv.Read(files...)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", strings.Join(files, ", "), err)
	}
	return env, nil
}

// FromEnv builds and validates a Config from lookup.
func FromEnv(lookup LookupFunc) (Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := Config{
		Credentials: provider.Credentials{
			OpenAIKey:        get(EnvOpenAIKey),
			OpenAIBaseURL:    get(EnvOpenAIBaseURL),
			AnthropicKey:     get(EnvAnthropicKey),
			AnthropicBaseURL: get(EnvAnthropicBaseURL),
			GroqKey:          get(EnvGroqKey),
			GroqBaseURL:      get(EnvGroqBaseURL),
		},
		Retry:    executor.DefaultRetryConfig(),
		NATSURL:  get(EnvNATSURL),
		LogLevel: slog.LevelInfo,
	}

	var errs error
	if v := get(EnvMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", EnvMaxRetries, err))
		}
		cfg.Retry.MaxRetries = n
	}
	if v := get(EnvRetryDelay); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", EnvRetryDelay, err))
		}
		cfg.Retry.BaseDelay = d
	}
	if v := get(EnvMaxRetryDelay); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", EnvMaxRetryDelay, err))
		}
		cfg.Retry.MaxDelay = d
	}
	if v := get(EnvRequestTimeout); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", EnvRequestTimeout, err))
		}
		cfg.Credentials.RequestTimeout = d
	}
	if v := get(EnvLogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", EnvLogLevel, err))
		}
	}
	if v := get(EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", EnvDebug, err))
		}
		cfg.Debug = b
	}
	if errs != nil {
		return Config{}, errs
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parseDuration accepts Go durations ("1500ms") and bare numbers of seconds ("2").
func parseDuration(v string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return time.ParseDuration(v)
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	ns := secs * float64(time.Second)
	if ns >= math.MaxInt64 || ns <= math.MinInt64 {
		return 0, fmt.Errorf("duration %q out of range", v)
	}
	return time.Duration(ns), nil
}

// Validate requires at least one provider key, a non-negative request timeout
// and sane retry bounds.
func (c Config) Validate() error {
	var err error
	if len(c.Credentials.Configured()) == 0 {
		err = errors.Join(err, fmt.Errorf("%w: set %s, %s or %s", ErrNoCredentials, EnvOpenAIKey, EnvAnthropicKey, EnvGroqKey))
	}
	if c.Credentials.RequestTimeout < 0 {
		err = errors.Join(err, fmt.Errorf("%s must not be negative", EnvRequestTimeout))
	}
	if rerr := c.Retry.Validate(); rerr != nil {
		err = errors.Join(err, rerr)
	}
	return err
}

package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 2 * time.Second
)

// RetryConfig bounds the retry loop of a Controller.
type RetryConfig struct {
	// MaxRetries is the number of attempts allowed after the first one.
	MaxRetries int
	// BaseDelay grows as BaseDelay * 2^(n+1) before the n-th retry (n from 0).
	BaseDelay time.Duration
	// MaxDelay caps a single backoff. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultRetryConfig allows 3 retries waiting 4s, 8s and 16s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
	}
}

func (c RetryConfig) Validate() error {
	var err error
	if c.MaxRetries < 0 {
		err = errors.Join(err, fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries))
	}
	if c.BaseDelay < 0 {
		err = errors.Join(err, fmt.Errorf("base delay must not be negative, got %s", c.BaseDelay))
	}
	if c.MaxDelay < 0 {
		err = errors.Join(err, fmt.Errorf("max delay must not be negative, got %s", c.MaxDelay))
	}
	return err
}

// Backoff is the delay before the retry that follows failed attempt number attempt.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := c.BaseDelay
	for i := 0; i <= attempt; i++ {
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
	}

	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

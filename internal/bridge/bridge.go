// Package bridge runs one blocking provider call on its own goroutine and hands
// the tokens it produces back to the calling goroutine over a channel.
//
// Every Attempt owns a fresh channel and a fresh goroutine; nothing is shared
// between attempts, so tokens of an abandoned attempt can never leak into the
// next one. The producer always sends a terminator as its last item, even when
// the adapter fails or panics.
//
// The consuming methods (Next, Tokens, Wait, Abandon) must be called from a
// single goroutine.
package bridge

import (
	"context"
	"fmt"
	"iter"

	"github.com/casualjim/hoot/provider"
	"github.com/fogfish/opts"
)

// DefaultBufferSize is the capacity of an attempt's token channel.
const DefaultBufferSize = 64

type kind uint8

const (
	kindToken kind = iota
	kindError
	kindDone
)

type item struct {
	kind  kind
	token string
	err   error
}

// Config tunes an attempt.
type Config struct {
	bufferSize int
}

// WithBufferSize sets the capacity of the token channel. Zero makes every hand-off synchronous.
var WithBufferSize = opts.ForName[Config, int]("bufferSize")

// Attempt is one provider invocation in flight.
type Attempt struct {
	number int
	items  chan item
	done   chan struct{}
	cancel context.CancelFunc

	// written by the producer before the terminator is sent
	text string

	err       error
	finished  bool
	abandoned bool
}

// Start invokes adapter on a new goroutine and returns the attempt that relays its tokens.
func Start(ctx context.Context, number int, adapter provider.Adapter, prompt string, params provider.Params, options ...opts.Option[Config]) (*Attempt, error) {
	cfg := Config{bufferSize: DefaultBufferSize}
	if err := opts.Apply(&cfg, options); err != nil {
		return nil, err
	}
	if cfg.bufferSize < 0 {
		return nil, fmt.Errorf("bridge: negative buffer size %d", cfg.bufferSize)
	}
	if adapter == nil {
		return nil, fmt.Errorf("bridge: nil adapter")
	}

	actx, cancel := context.WithCancel(ctx)
	a := &Attempt{
		number: number,
		items:  make(chan item, cfg.bufferSize),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go a.produce(actx, adapter, prompt, params)
	return a, nil
}

func (a *Attempt) produce(ctx context.Context, adapter provider.Adapter, prompt string, params provider.Params) {
	defer close(a.done)
	defer func() {
		a.items <- item{kind: kindDone}
	}()

	text, err := invoke(ctx, adapter, prompt, params, func(token string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case a.items <- item{kind: kindToken, token: token}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		a.items <- item{kind: kindError, err: err}
		return
	}
	a.text = text
}

func invoke(ctx context.Context, adapter provider.Adapter, prompt string, params provider.Params, onToken provider.TokenFunc) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("provider adapter panicked: %v", p)
		}
	}()
	return adapter.Invoke(ctx, prompt, params, onToken)
}

// Number is the zero-based position of the attempt in its retry sequence.
func (a *Attempt) Number() int {
	return a.number
}

// Next blocks until the next token arrives. It returns false once the attempt has
// ended, after which Err reports the failure, if there was one.
func (a *Attempt) Next() (string, bool) {
	if a.finished {
		return "", false
	}

	it := <-a.items
	switch it.kind {
	case kindToken:
		return it.token, true
	case kindError:
		a.err = it.err
		a.drain()
	}
	a.finished = true
	return "", false
}

// drain discards items up to and including the terminator.
func (a *Attempt) drain() {
	for it := range a.items {
		if it.kind == kindDone {
			return
		}
	}
}

// Tokens iterates the remaining tokens. Stopping the iteration early abandons the attempt.
func (a *Attempt) Tokens() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			tok, ok := a.Next()
			if !ok {
				return
			}
			if !yield(tok) {
				a.Abandon()
				return
			}
		}
	}
}

// Err is the adapter failure observed by Next, if any.
func (a *Attempt) Err() error {
	return a.err
}

// Wait discards any tokens not yet consumed and blocks until the producing
// goroutine has exited. It returns the full text reported by the adapter.
func (a *Attempt) Wait() (string, error) {
	for {
		if _, ok := a.Next(); !ok {
			break
		}
	}
	<-a.done
	a.cancel()
	return a.text, a.err
}

// Abandon cancels the provider call. The remaining items are drained in the
// background so the producer can always finish.
func (a *Attempt) Abandon() {
	a.cancel()
	if a.finished {
		return
	}
	a.finished = true
	a.abandoned = true
	go a.drain()
}

// Abandoned reports whether the consumer gave up on the attempt.
func (a *Attempt) Abandoned() bool {
	return a.abandoned
}

// Done is closed once the producing goroutine has exited.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

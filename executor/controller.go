package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/casualjim/hoot/events"
	"github.com/casualjim/hoot/failure"
	"github.com/casualjim/hoot/internal/bridge"
	"github.com/casualjim/hoot/pkg/slogx"
	"github.com/fogfish/opts"
	"github.com/google/uuid"
)

// State is a position in the retry state machine.
type State int

const (
	Attempting State = iota
	RetryScheduled
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case RetryScheduled:
		return "retry_scheduled"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// AttemptFunc starts attempt number attempt (zero-based). An error means the
// attempt could not be started at all and is never retried.
type AttemptFunc func(ctx context.Context, attempt int) (*bridge.Attempt, error)

// Transition describes one state change of a run.
type Transition struct {
	RunID   uuid.UUID
	From    State
	To      State
	Attempt int
	Kind    failure.Kind
	Delay   time.Duration
}

// TransitionFunc observes state changes.
type TransitionFunc func(Transition)

// Outcome summarizes a finished run.
type Outcome struct {
	State     State
	Attempts  int
	Text      string
	Err       *failure.Error
	Abandoned bool
}

type Controller struct {
	config       RetryConfig
	sleep        func(context.Context, time.Duration) error
	logger       *slog.Logger
	onTransition TransitionFunc
}

var (
	// WithSleep replaces the backoff wait, mostly for tests.
	WithSleep = opts.ForName[Controller, func(context.Context, time.Duration) error]("sleep")
	// WithLogger sets the logger for transition and retry logs.
	WithLogger = opts.ForName[Controller, *slog.Logger]("logger")
	// WithTransitions registers an observer for every state change.
	WithTransitions = opts.ForName[Controller, TransitionFunc]("onTransition")
)

func NewController(config RetryConfig, options ...opts.Option[Controller]) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		config: config,
		sleep:  Sleep,
	}
	if err := opts.Apply(c, options); err != nil {
		return nil, err
	}
	if c.logger == nil {
		c.logger = slog.Default().With(slogx.LoggerName("executor"))
	}
	if c.sleep == nil {
		c.sleep = Sleep
	}
	return c, nil
}

// Run executes attempts until one succeeds, a failure is final or the consumer
// stops. Events are handed to yield in order; a false return from yield stops
// the run and abandons the current attempt. Unless the consumer stopped, the last
// event yielded is always an EndOfStream or exactly one TerminalError.
func (c *Controller) Run(ctx context.Context, runID uuid.UUID, start AttemptFunc, yield func(events.Event) bool) Outcome {
	log := c.logger.With(slogx.RunID(runID))

	for attempt := 0; ; attempt++ {
		a, err := start(ctx, attempt)
		if err != nil {
			fe := failure.Classify(err)
			log.ErrorContext(ctx, "attempt could not start", slogx.Attempt(attempt), slogx.Error(err))
			return c.fail(ctx, runID, attempt, fe, yield)
		}

		for tok := range a.Tokens() {
			if !yield(events.NewToken(runID, a.Number(), tok)) {
				log.DebugContext(ctx, "consumer stopped", slogx.Attempt(attempt))
				return Outcome{State: Attempting, Attempts: attempt + 1, Abandoned: true}
			}
		}

		text, err := a.Wait()
		if err == nil {
			c.transition(ctx, log, Transition{RunID: runID, From: Attempting, To: Succeeded, Attempt: attempt})
			yield(events.End(runID, attempt+1))
			return Outcome{State: Succeeded, Attempts: attempt + 1, Text: text}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			// the caller's deadline, not the provider, ended this attempt
			return c.fail(ctx, runID, attempt, failure.Classify(ctxErr), yield)
		}

		fe := failure.Classify(err)
		if !fe.Retryable() || attempt >= c.config.MaxRetries {
			if fe.Retryable() {
				log.WarnContext(ctx, "retries exhausted", slogx.Attempt(attempt), slogx.Stringer("kind", fe.Kind))
			}
			return c.fail(ctx, runID, attempt, fe, yield)
		}

		delay := c.config.Backoff(attempt)
		log.WarnContext(ctx, "attempt failed, retrying",
			slogx.Attempt(attempt),
			slog.Int("max_retries", c.config.MaxRetries),
			slogx.Stringer("kind", fe.Kind),
			slog.Duration("delay", delay),
			slogx.Error(err),
		)
		c.transition(ctx, log, Transition{RunID: runID, From: Attempting, To: RetryScheduled, Attempt: attempt, Kind: fe.Kind, Delay: delay})

		if err := c.sleep(ctx, delay); err != nil {
			return c.fail(ctx, runID, attempt, failure.Wrap(failure.Timeout, "The request was cancelled while waiting to retry.", err), yield)
		}
		c.transition(ctx, log, Transition{RunID: runID, From: RetryScheduled, To: Attempting, Attempt: attempt + 1})
	}
}

func (c *Controller) fail(ctx context.Context, runID uuid.UUID, attempt int, fe *failure.Error, yield func(events.Event) bool) Outcome {
	c.transition(ctx, c.logger.With(slogx.RunID(runID)), Transition{RunID: runID, From: Attempting, To: Failed, Attempt: attempt, Kind: fe.Kind})
	yield(events.Fail(runID, fe))
	return Outcome{State: Failed, Attempts: attempt + 1, Err: fe}
}

func (c *Controller) transition(ctx context.Context, log *slog.Logger, t Transition) {
	log.DebugContext(ctx, "state transition",
		slogx.Stringer("from", t.From),
		slogx.Stringer("to", t.To),
		slog.Int("attempt", t.Attempt),
	)
	if c.onTransition != nil {
		c.onTransition(t)
	}
}

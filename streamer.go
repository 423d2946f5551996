package hoot

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/casualjim/hoot/broker"
	"github.com/casualjim/hoot/events"
	"github.com/casualjim/hoot/executor"
	"github.com/casualjim/hoot/failure"
	"github.com/casualjim/hoot/internal/bridge"
	"github.com/casualjim/hoot/pkg/slogx"
	"github.com/casualjim/hoot/pkg/uuidx"
	"github.com/casualjim/hoot/prompt"
	"github.com/casualjim/hoot/provider"
	"github.com/casualjim/hoot/provider/anthropic"
	"github.com/casualjim/hoot/provider/groq"
	"github.com/casualjim/hoot/provider/openai"
	"github.com/fogfish/opts"
	"github.com/google/uuid"
)

// Streamer runs generation requests against the configured providers. It holds
// no per-call state and is safe for concurrent use.
type Streamer struct {
	retry      executor.RetryConfig
	resolver   *provider.Resolver
	broker     broker.Broker
	topic      string
	recorder   Recorder
	hooks      events.Hooks
	logger     *slog.Logger
	bufferSize int
	sleep      func(context.Context, time.Duration) error

	controller *executor.Controller
}

var (
	WithRetry = opts.ForName[Streamer, executor.RetryConfig]("retry")
	// WithResolver replaces the resolver built from the credentials passed to New.
	WithResolver = opts.ForName[Streamer, *provider.Resolver]("resolver")
	// WithBroker publishes every event of every call to the broker.
	WithBroker   = opts.ForName[Streamer, broker.Broker]("broker")
	WithTopic    = opts.ForName[Streamer, string]("topic")
	WithRecorder = opts.ForName[Streamer, Recorder]("recorder")
	WithLogger   = opts.ForName[Streamer, *slog.Logger]("logger")
	// WithBufferSize sets the capacity of each attempt's token channel.
	WithBufferSize = opts.ForName[Streamer, int]("bufferSize")
	// WithSleep replaces the wait between attempts.
	WithSleep = opts.ForName[Streamer, func(context.Context, time.Duration) error]("sleep")
)

// WithHooks registers observers that receive every event after the caller does.
func WithHooks(hooks ...events.Hook) opts.Option[Streamer] {
	return opts.Type[Streamer](func(s *Streamer) error {
		for _, h := range hooks {
			if h == nil {
				return errors.New("hook is required")
			}
		}
		s.hooks = append(s.hooks, hooks...)
		return nil
	})
}

// DefaultAdapters maps every provider family to its adapter constructor.
func DefaultAdapters() map[provider.Family]provider.Constructor {
	return map[provider.Family]provider.Constructor{
		provider.OpenAI:    openai.Constructor,
		provider.Anthropic: anthropic.Constructor,
		provider.Groq:      groq.Constructor,
	}
}

// New creates a Streamer. Missing credentials are not an error here: they
// surface as a model_init_error when a model of that family is first used.
func New(creds provider.Credentials, options ...opts.Option[Streamer]) (*Streamer, error) {
	s := &Streamer{
		retry:      executor.DefaultRetryConfig(),
		topic:      broker.DefaultTopic,
		bufferSize: bridge.DefaultBufferSize,
	}
	if err := opts.Apply(s, options); err != nil {
		return nil, err
	}

	if s.resolver == nil {
		s.resolver = provider.NewResolver(creds, DefaultAdapters())
	}
	if s.logger == nil {
		s.logger = slog.Default().With(slogx.LoggerName("hoot"))
	}
	if s.topic == "" {
		s.topic = broker.DefaultTopic
	}

	copts := []opts.Option[executor.Controller]{executor.WithLogger(s.logger)}
	if s.sleep != nil {
		copts = append(copts, executor.WithSleep(s.sleep))
	}
	controller, err := executor.NewController(s.retry, copts...)
	if err != nil {
		return nil, err
	}
	s.controller = controller
	return s, nil
}

// StreamGeneration returns the event sequence of one call. Nothing happens until
// the sequence is ranged over. The sequence ends with exactly one EndOfStream or
// TerminalError unless the caller stops early, in which case the running attempt
// is cancelled and nothing further is produced.
func (s *Streamer) StreamGeneration(ctx context.Context, req GenerationRequest) iter.Seq[events.Event] {
	return func(yield func(events.Event) bool) {
		runID := uuidx.OrNew(req.RunID)
		log := s.logger.With(slogx.RunID(runID), slog.String("model", req.Model))
		emit := s.emitter(ctx, log, yield)

		text, err := s.prepare(req)
		if err != nil {
			fe := failure.Classify(err)
			log.InfoContext(ctx, "request rejected", slogx.Error(err))
			emit(events.Fail(runID, fe))
			s.record(ctx, log, req, runID, executor.Outcome{State: executor.Failed, Attempts: 0, Err: fe})
			return
		}

		params := provider.Params{
			Model:       req.Model,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		}
		start := func(ctx context.Context, attempt int) (*bridge.Attempt, error) {
			adapter, err := s.resolver.Resolve(req.Model)
			if err != nil {
				return nil, err
			}
			return bridge.Start(ctx, attempt, adapter, text, params, bridge.WithBufferSize(s.bufferSize))
		}

		log.DebugContext(ctx, "stream started")
		outcome := s.controller.Run(ctx, runID, start, emit)
		log.DebugContext(ctx, "stream finished",
			slogx.Stringer("state", outcome.State),
			slog.Int("attempts", outcome.Attempts),
			slog.Bool("abandoned", outcome.Abandoned),
		)
		s.record(ctx, log, req, runID, outcome)
	}
}

// prepare validates the request and assembles the prompt that every attempt reuses.
func (s *Streamer) prepare(req GenerationRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	return prompt.Assemble(req.History, req.Content, req.Template)
}

// emitter hands an event to the caller first and then to the hooks and broker.
// Observers still see an event whose yield returned false.
func (s *Streamer) emitter(ctx context.Context, log *slog.Logger, yield func(events.Event) bool) func(events.Event) bool {
	var topic broker.Topic
	if s.broker != nil {
		topic = s.broker.Topic(ctx, s.topic)
	}
	// observers get the terminal event even when the caller's context is done
	octx := context.WithoutCancel(ctx)

	return func(e events.Event) bool {
		more := yield(e)
		events.Dispatch(octx, s.hooks, e)
		if topic != nil {
			if err := topic.Publish(octx, e); err != nil {
				log.WarnContext(ctx, "failed to publish event", slog.String("topic", s.topic), slogx.Error(err))
			}
		}
		return more
	}
}

func (s *Streamer) record(ctx context.Context, log *slog.Logger, req GenerationRequest, runID uuid.UUID, outcome executor.Outcome) {
	if s.recorder == nil {
		return
	}
	result := Result{
		RunID:     runID,
		Model:     req.Model,
		Text:      outcome.Text,
		Tokens:    CountTokens(outcome.Text),
		Attempts:  outcome.Attempts,
		State:     outcome.State,
		Err:       outcome.Err,
		Abandoned: outcome.Abandoned,
	}
	if err := s.recorder.Record(context.WithoutCancel(ctx), result); err != nil {
		log.ErrorContext(ctx, "failed to record result", slogx.Error(err))
	}
}

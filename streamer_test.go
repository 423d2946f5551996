package hoot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/casualjim/hoot/broker"
	"github.com/casualjim/hoot/events"
	"github.com/casualjim/hoot/executor"
	"github.com/casualjim/hoot/failure"
	"github.com/casualjim/hoot/provider"
	"github.com/casualjim/hoot/provider/groq"
	"github.com/fogfish/opts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stub counts invocations and runs the scripted behaviour for each one.
type stub struct {
	calls   atomic.Int32
	prompts []string
	mu      sync.Mutex
	script  func(ctx context.Context, call int, onToken provider.TokenFunc) (string, error)
}

func (s *stub) Invoke(ctx context.Context, prompt string, _ provider.Params, onToken provider.TokenFunc) (string, error) {
	call := int(s.calls.Add(1)) - 1
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.script(ctx, call, onToken)
}

func emitAll(onToken provider.TokenFunc, tokens ...string) (string, error) {
	for _, tok := range tokens {
		if err := onToken(tok); err != nil {
			return "", err
		}
	}
	return strings.Join(tokens, ""), nil
}

type recorderStub struct {
	mu      sync.Mutex
	results []Result
	err     error
}

func (r *recorderStub) Record(_ context.Context, result Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return r.err
}

func (r *recorderStub) last(t *testing.T) Result {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.results, 1)
	return r.results[0]
}

type sleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleeps) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func resolverFor(adapters map[provider.Family]provider.Adapter) *provider.Resolver {
	ctors := make(map[provider.Family]provider.Constructor, len(adapters))
	for f, a := range adapters {
		ctors[f] = func(provider.Credentials) (provider.Adapter, error) { return a, nil }
	}
	return provider.NewResolver(provider.Credentials{}, ctors)
}

func newStreamer(t *testing.T, adapter provider.Adapter, options ...opts.Option[Streamer]) (*Streamer, *sleeps, *recorderStub) {
	t.Helper()
	sl := &sleeps{}
	rec := &recorderStub{}
	all := append([]opts.Option[Streamer]{
		WithResolver(resolverFor(map[provider.Family]provider.Adapter{
			provider.OpenAI:    adapter,
			provider.Anthropic: adapter,
			provider.Groq:      adapter,
		})),
		WithSleep(sl.sleep),
		WithRecorder(Recorder(rec)),
	}, options...)
	s, err := New(provider.Credentials{}, all...)
	require.NoError(t, err)
	return s, sl, rec
}

func request(t *testing.T, content string, options ...opts.Option[GenerationRequest]) GenerationRequest {
	t.Helper()
	req, err := NewRequest("gpt-3.5-turbo", content, options...)
	require.NoError(t, err)
	return req
}

func collect(s *Streamer, ctx context.Context, req GenerationRequest) []events.Event {
	var out []events.Event
	for ev := range s.StreamGeneration(ctx, req) {
		out = append(out, ev)
	}
	return out
}

func tokenTexts(evs []events.Event) []string {
	var out []string
	for _, ev := range evs {
		if tok, ok := ev.(events.Token); ok {
			out = append(out, tok.Text)
		}
	}
	return out
}

func requireTerminalError(t *testing.T, evs []events.Event) events.TerminalError {
	t.Helper()
	require.NotEmpty(t, evs)
	te, ok := evs[len(evs)-1].(events.TerminalError)
	require.True(t, ok, "last event should be a terminal error, got %T", evs[len(evs)-1])
	for _, ev := range evs[:len(evs)-1] {
		assert.False(t, events.IsTerminal(ev))
	}
	return te
}

func TestStreamGeneration_Success(t *testing.T) {
	adapter := &stub{script: func(_ context.Context, _ int, onToken provider.TokenFunc) (string, error) {
		return emitAll(onToken, "Hello", " wide", " world")
	}}
	s, sl, rec := newStreamer(t, adapter)

	req := request(t, "greet me")
	evs := collect(s, context.Background(), req)

	require.Len(t, evs, 4)
	assert.Equal(t, []string{"Hello", " wide", " world"}, tokenTexts(evs))
	end, ok := evs[3].(events.EndOfStream)
	require.True(t, ok)
	assert.Equal(t, 1, end.Attempts)

	runID := end.RunID
	for _, ev := range evs[:3] {
		tok := ev.(events.Token)
		assert.Equal(t, runID, tok.RunID)
		assert.Equal(t, 0, tok.Attempt)
	}

	assert.Empty(t, sl.recorded())
	assert.Contains(t, adapter.prompts[0], "User: greet me")

	res := rec.last(t)
	assert.Equal(t, executor.Succeeded, res.State)
	assert.Equal(t, "Hello wide world", res.Text)
	assert.Equal(t, 3, res.Tokens)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, runID, res.RunID)
	assert.Nil(t, res.Err)
}

func TestStreamGeneration_BlankContent(t *testing.T) {
	adapter := &stub{script: func(context.Context, int, provider.TokenFunc) (string, error) {
		return "never", nil
	}}
	s, _, rec := newStreamer(t, adapter)

	evs := collect(s, context.Background(), request(t, "   \n"))

	require.Len(t, evs, 1)
	te := requireTerminalError(t, evs)
	assert.Equal(t, failure.Validation, te.Kind)
	assert.Equal(t, 400, te.Status)
	assert.Zero(t, adapter.calls.Load())

	res := rec.last(t)
	assert.Equal(t, executor.Failed, res.State)
	assert.Zero(t, res.Attempts)
}

func TestStreamGeneration_RetriesRateLimitOnce(t *testing.T) {
	adapter := &stub{script: func(_ context.Context, call int, onToken provider.TokenFunc) (string, error) {
		if call == 0 {
			_ = onToken("partial")
			return "", errors.New("429 Too Many Requests")
		}
		return emitAll(onToken, "full", " answer")
	}}
	s, sl, rec := newStreamer(t, adapter)

	evs := collect(s, context.Background(), request(t, "hi"))

	assert.Equal(t, []string{"partial", "full", " answer"}, tokenTexts(evs))
	assert.Equal(t, 0, evs[0].(events.Token).Attempt)
	assert.Equal(t, 1, evs[1].(events.Token).Attempt)
	end, ok := evs[len(evs)-1].(events.EndOfStream)
	require.True(t, ok)
	assert.Equal(t, 2, end.Attempts)

	assert.Equal(t, []time.Duration{4 * time.Second}, sl.recorded())
	assert.EqualValues(t, 2, adapter.calls.Load())

	adapter.mu.Lock()
	assert.Equal(t, adapter.prompts[0], adapter.prompts[1])
	adapter.mu.Unlock()

	assert.Equal(t, 2, rec.last(t).Attempts)
}

func TestStreamGeneration_RateLimitExhausted(t *testing.T) {
	adapter := &stub{script: func(context.Context, int, provider.TokenFunc) (string, error) {
		return "", errors.New("rate limit exceeded")
	}}
	s, sl, _ := newStreamer(t, adapter)

	evs := collect(s, context.Background(), request(t, "hi"))

	require.Len(t, evs, 1)
	te := requireTerminalError(t, evs)
	assert.Equal(t, failure.RateLimit, te.Kind)
	assert.Equal(t, 429, te.Status)
	assert.EqualValues(t, 4, adapter.calls.Load())
	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second}, sl.recorded())
}

func TestStreamGeneration_HungProviderTimesOutAndRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	adapter, err := groq.New(
		provider.Credentials{GroqKey: "gsk-test", GroqBaseURL: server.URL, RequestTimeout: 30 * time.Millisecond},
		groq.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	s, sl, rec := newStreamer(t, adapter)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	evs := collect(s, ctx, request(t, "hi"))

	require.Len(t, evs, 1)
	te := requireTerminalError(t, evs)
	assert.Equal(t, failure.Timeout, te.Kind)
	assert.Equal(t, 504, te.Status)
	assert.EqualValues(t, 4, hits.Load())
	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second}, sl.recorded())
	assert.Equal(t, 4, rec.last(t).Attempts)
}

func TestStreamGeneration_Unauthorized(t *testing.T) {
	adapter := &stub{script: func(context.Context, int, provider.TokenFunc) (string, error) {
		return "", errors.New("request unauthorized")
	}}
	s, sl, _ := newStreamer(t, adapter)

	evs := collect(s, context.Background(), request(t, "hi"))

	te := requireTerminalError(t, evs)
	assert.Equal(t, failure.Auth, te.Kind)
	assert.Equal(t, 401, te.Status)
	assert.EqualValues(t, 1, adapter.calls.Load())
	assert.Empty(t, sl.recorded())
}

func TestStreamGeneration_LLMErrorIsNotRetried(t *testing.T) {
	adapter := &stub{script: func(_ context.Context, _ int, onToken provider.TokenFunc) (string, error) {
		_ = onToken("so far")
		return "", provider.StreamFailure(provider.Groq, "overloaded")
	}}
	s, _, _ := newStreamer(t, adapter)

	evs := collect(s, context.Background(), request(t, "hi"))

	assert.Equal(t, []string{"so far"}, tokenTexts(evs))
	te := requireTerminalError(t, evs)
	assert.Equal(t, failure.LLM, te.Kind)
	assert.EqualValues(t, 1, adapter.calls.Load())
}

func TestStreamGeneration_ModelInitError(t *testing.T) {
	resolver := provider.NewResolver(provider.Credentials{}, map[provider.Family]provider.Constructor{
		provider.Anthropic: func(provider.Credentials) (provider.Adapter, error) {
			return nil, provider.ErrMissingCredentials
		},
	})
	s, sl, _ := newStreamer(t, &stub{}, WithResolver(resolver))

	req, err := NewRequest("claude-3-haiku", "hi")
	require.NoError(t, err)
	evs := collect(s, context.Background(), req)

	require.Len(t, evs, 1)
	te := requireTerminalError(t, evs)
	assert.Equal(t, failure.ModelInit, te.Kind)
	assert.Equal(t, 500, te.Status)
	assert.Contains(t, te.Message, "claude-3-haiku")
	assert.Empty(t, sl.recorded())
}

func TestStreamGeneration_UnknownModelUsesDefaultAdapter(t *testing.T) {
	var used atomic.Value
	mk := func(f provider.Family) provider.Adapter {
		return provider.AdapterFunc(func(_ context.Context, _ string, _ provider.Params, onToken provider.TokenFunc) (string, error) {
			used.Store(f)
			return emitAll(onToken, "ok")
		})
	}
	resolver := resolverFor(map[provider.Family]provider.Adapter{
		provider.OpenAI:    mk(provider.OpenAI),
		provider.Anthropic: mk(provider.Anthropic),
		provider.Groq:      mk(provider.Groq),
	})
	s, _, _ := newStreamer(t, nil, WithResolver(resolver))

	req, err := NewRequest("some-unknown-model", "hi")
	require.NoError(t, err)
	evs := collect(s, context.Background(), req)

	require.Len(t, evs, 2)
	assert.Equal(t, provider.OpenAI, used.Load())
}

func TestStreamGeneration_ConsumerStops(t *testing.T) {
	adapter := &stub{script: func(ctx context.Context, _ int, onToken provider.TokenFunc) (string, error) {
		for {
			if err := onToken("tick "); err != nil {
				return "", err
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
		}
	}}
	s, _, rec := newStreamer(t, adapter)

	var seen int
	for ev := range s.StreamGeneration(context.Background(), request(t, "hi")) {
		_, ok := ev.(events.Token)
		require.True(t, ok)
		seen++
		if seen == 3 {
			break
		}
	}

	assert.Equal(t, 3, seen)
	res := rec.last(t)
	assert.True(t, res.Abandoned)
	assert.EqualValues(t, 1, adapter.calls.Load())
}

func TestStreamGeneration_Idempotent(t *testing.T) {
	adapter := &stub{script: func(_ context.Context, _ int, onToken provider.TokenFunc) (string, error) {
		return emitAll(onToken, "same", " every", " time")
	}}
	s, _, _ := newStreamer(t, adapter)

	req := request(t, "hi")
	first := tokenTexts(collect(s, context.Background(), req))
	second := tokenTexts(collect(s, context.Background(), req))
	assert.Equal(t, first, second)
}

func TestStreamGeneration_RecorderFailureDoesNotAffectStream(t *testing.T) {
	adapter := &stub{script: func(_ context.Context, _ int, onToken provider.TokenFunc) (string, error) {
		return emitAll(onToken, "fine")
	}}
	failing := RecorderFunc(func(context.Context, Result) error { return errors.New("db down") })
	s, _, _ := newStreamer(t, adapter, WithRecorder(Recorder(failing)))

	evs := collect(s, context.Background(), request(t, "hi"))
	require.Len(t, evs, 2)
	_, ok := evs[1].(events.EndOfStream)
	assert.True(t, ok)
}

type orderHook struct {
	mu    sync.Mutex
	seen  []events.Event
	ended chan struct{}
}

func (h *orderHook) add(e events.Event) {
	h.mu.Lock()
	h.seen = append(h.seen, e)
	h.mu.Unlock()
	if events.IsTerminal(e) && h.ended != nil {
		close(h.ended)
	}
}

func (h *orderHook) OnToken(_ context.Context, t events.Token)         { h.add(t) }
func (h *orderHook) OnError(_ context.Context, e events.TerminalError) { h.add(e) }
func (h *orderHook) OnEnd(_ context.Context, e events.EndOfStream)     { h.add(e) }

func (h *orderHook) events() []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.Event(nil), h.seen...)
}

func TestStreamGeneration_Observers(t *testing.T) {
	adapter := &stub{script: func(_ context.Context, _ int, onToken provider.TokenFunc) (string, error) {
		return emitAll(onToken, "a", "b")
	}}

	local, err := broker.Local()
	require.NoError(t, err)
	subscriber := &orderHook{ended: make(chan struct{})}
	sub, err := local.Topic(context.Background(), "test.runs").Subscribe(context.Background(), subscriber)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	direct := &orderHook{}
	s, _, _ := newStreamer(t, adapter,
		WithHooks(direct),
		WithBroker(broker.Broker(local)),
		WithTopic("test.runs"),
	)

	evs := collect(s, context.Background(), request(t, "hi"))
	require.Len(t, evs, 3)

	assert.Equal(t, evs, direct.events())

	select {
	case <-subscriber.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("broker subscriber did not receive the end of stream")
	}
	assert.Equal(t, evs, subscriber.events())
}

func TestNew_Options(t *testing.T) {
	_, err := New(provider.Credentials{}, WithRetry(executor.RetryConfig{MaxRetries: -1}))
	assert.Error(t, err)

	_, err = New(provider.Credentials{}, WithHooks(nil))
	assert.ErrorContains(t, err, "hook is required")

	s, err := New(provider.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, executor.DefaultRetryConfig(), s.retry)
	assert.Equal(t, broker.DefaultTopic, s.topic)
}

func TestNew_MissingCredentialsSurfaceAtUse(t *testing.T) {
	s, err := New(provider.Credentials{}, WithSleep(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)

	evs := collect(s, context.Background(), request(t, "hi"))
	te := requireTerminalError(t, evs)
	assert.Equal(t, failure.ModelInit, te.Kind)
	assert.Contains(t, te.Details, "no api key configured")
}

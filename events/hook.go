package events

import "context"

// Hook observes the events of a generation stream as they are emitted.
type Hook interface {
	OnToken(context.Context, Token)
	OnError(context.Context, TerminalError)
	OnEnd(context.Context, EndOfStream)
}

// Dispatch calls the hook method matching the concrete event type.
func Dispatch(ctx context.Context, h Hook, e Event) {
	if h == nil {
		return
	}
	switch ev := e.(type) {
	case Token:
		h.OnToken(ctx, ev)
	case TerminalError:
		h.OnError(ctx, ev)
	case EndOfStream:
		h.OnEnd(ctx, ev)
	}
}

// Hooks fans an event out to several hooks in order.
type Hooks []Hook

func (hs Hooks) OnToken(ctx context.Context, t Token) {
	for _, h := range hs {
		h.OnToken(ctx, t)
	}
}

func (hs Hooks) OnError(ctx context.Context, e TerminalError) {
	for _, h := range hs {
		h.OnError(ctx, e)
	}
}

func (hs Hooks) OnEnd(ctx context.Context, e EndOfStream) {
	for _, h := range hs {
		h.OnEnd(ctx, e)
	}
}

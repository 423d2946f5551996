package broker

import (
	"context"

	"github.com/casualjim/hoot/events"
)

// DefaultTopic is the topic runs publish to when nothing else is configured.
const DefaultTopic = "hoot.runs"

type Broker interface {
	Topic(context.Context, string) Topic
}

type Topic interface {
	Publish(context.Context, events.Event) error
	Subscribe(context.Context, events.Hook) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

// forwardToHook delivers events from ch to hook until ch is closed, stop is
// closed or ctx is done.
func forwardToHook(ctx context.Context, ch <-chan events.Event, stop <-chan struct{}, hook events.Hook) {
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			events.Dispatch(ctx, hook, event)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

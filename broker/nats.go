package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/hoot/events"
	"github.com/casualjim/hoot/pkg/slogx"
	"github.com/casualjim/hoot/pkg/uuidx"
	"github.com/nats-io/nats.go"
)

type NATSBroker struct {
	client *nats.Conn
	topics *haxmap.Map[string, *natsTopic]
}

// NATS creates a broker that publishes on subjects named after the topics.
func NATS(client *nats.Conn) *NATSBroker {
	return &NATSBroker{
		client: client,
		topics: haxmap.New[string, *natsTopic](),
	}
}

func (b *NATSBroker) Topic(_ context.Context, id string) Topic {
	top, _ := b.topics.GetOrCompute(id, func() *natsTopic {
		return &natsTopic{
			subject: id,
			client:  b.client,
		}
	})
	return top
}

type natsTopic struct {
	client  *nats.Conn
	subject string
}

func (t *natsTopic) Publish(ctx context.Context, event events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	eb, err := events.ToJSON(event)
	if err != nil {
		return err
	}
	return t.client.Publish(t.subject, eb)
}

func (t *natsTopic) Subscribe(ctx context.Context, hook events.Hook) (Subscription, error) {
	if hook == nil {
		return nil, errors.New("hook is required")
	}

	ch := make(chan events.Event, subscriptionBuffer)
	stop := make(chan struct{})
	var stopOnce sync.Once
	closeStop := func() { stopOnce.Do(func() { close(stop) }) }

	nsub, err := t.client.Subscribe(t.subject, func(msg *nats.Msg) {
		event, err := events.FromJSON(msg.Data)
		if err != nil {
			slog.Error("failed to unmarshal event", slogx.Error(err), slog.String("subject", msg.Subject))
			return
		}

		select {
		case ch <- event:
		case <-stop:
			return
		case <-ctx.Done():
			return
		}

		if msg.Reply != "" {
			if nerr := msg.Respond(nil); nerr != nil {
				slog.Error("failed to ack message", slogx.Error(nerr))
			}
		}
	})
	if err != nil {
		return nil, err
	}
	nsub.SetClosedHandler(func(string) { closeStop() })

	go forwardToHook(ctx, ch, stop, hook)
	return &natsSubscription{
		id:   uuidx.NewString(),
		sub:  nsub,
		stop: closeStop,
	}, nil
}

type natsSubscription struct {
	id   string
	sub  *nats.Subscription
	stop func()
}

func (n *natsSubscription) ID() string {
	return n.id
}

func (n *natsSubscription) Unsubscribe() {
	if err := n.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrBadSubscription) {
		slog.Error("failed to unsubscribe", slogx.Error(err), slog.String("subscription", n.id))
	}
	n.stop()
}

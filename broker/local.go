package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/hoot/events"
	"github.com/casualjim/hoot/pkg/uuidx"
	"github.com/fogfish/opts"
)

const (
	defaultSlowSubscriberTimeout = 100 * time.Millisecond
	subscriptionBuffer           = 50
)

type LocalBroker struct {
	topics                *haxmap.Map[string, *topic]
	slowSubscriberTimeout time.Duration
}

// WithSlowSubscriberTimeout sets how long Publish waits on a full subscription
// before dropping that subscriber.
var WithSlowSubscriberTimeout = opts.ForName[LocalBroker, time.Duration]("slowSubscriberTimeout")

// Local creates an in-process broker.
func Local(options ...opts.Option[LocalBroker]) (*LocalBroker, error) {
	b := &LocalBroker{
		topics:                haxmap.New[string, *topic](),
		slowSubscriberTimeout: defaultSlowSubscriberTimeout,
	}
	if err := opts.Apply(b, options); err != nil {
		return nil, err
	}
	if b.slowSubscriberTimeout <= 0 {
		b.slowSubscriberTimeout = defaultSlowSubscriberTimeout
	}
	return b, nil
}

func (b *LocalBroker) Topic(_ context.Context, id string) Topic {
	t, _ := b.topics.GetOrCompute(id, func() *topic {
		return &topic{
			id:                    id,
			subscriptions:         haxmap.New[string, *subscription](),
			slowSubscriberTimeout: b.slowSubscriberTimeout,
		}
	})
	return t
}

type topic struct {
	id                    string
	subscriptions         *haxmap.Map[string, *subscription]
	slowSubscriberTimeout time.Duration
}

func (t *topic) Publish(ctx context.Context, event events.Event) error {
	if event == nil {
		return errors.New("event is required")
	}

	t.subscriptions.ForEach(func(_ string, sub *subscription) bool {
		if sub == nil {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.closed:
			return true
		case <-sub.ctx.Done():
			sub.Unsubscribe()
			return true
		default:
		}

		timer := time.NewTimer(t.slowSubscriberTimeout)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return false
		case <-sub.closed:
		case <-sub.ctx.Done():
			sub.Unsubscribe()
		case sub.channel <- event:
		case <-timer.C:
			// still full after the timeout, drop the subscriber
			sub.Unsubscribe()
		}
		return true
	})
	return ctx.Err()
}

func (t *topic) Subscribe(ctx context.Context, hook events.Hook) (Subscription, error) {
	if hook == nil {
		return nil, errors.New("hook is required")
	}

	id := uuidx.NewString()
	sub := &subscription{
		id:      id,
		ctx:     ctx,
		channel: make(chan events.Event, subscriptionBuffer),
		closed:  make(chan struct{}),
		onClose: func() { t.subscriptions.Del(id) },
	}
	t.subscriptions.Set(id, sub)
	go forwardToHook(ctx, sub.channel, sub.closed, hook)
	return sub, nil
}

type subscription struct {
	id        string
	ctx       context.Context
	channel   chan events.Event
	closed    chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func (s *subscription) ID() string {
	return s.id
}

// Unsubscribe stops delivery. The event channel itself is never closed so a
// concurrent Publish cannot panic.
func (s *subscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		close(s.closed)
	})
}

// Package broker fans the events of generation runs out to observers.
//
// A Broker hands out named topics. Publishing to a topic delivers the event to
// every current subscription, each of which forwards it to an events.Hook on
// its own goroutine. Two implementations exist: Local keeps everything in
// process, NATS relays the JSON form of each event over a NATS subject so
// observers can live in other processes.
//
// All runs of a Streamer publish to one topic (DefaultTopic unless configured);
// observers tell runs apart by the run id carried on every event.
//
//	b, err := broker.Local()
//	if err != nil {
//	    return err
//	}
//	sub, err := b.Topic(ctx, broker.DefaultTopic).Subscribe(ctx, hook)
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe()
package broker

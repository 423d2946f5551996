// Package events defines the units that flow out of a generation stream.
//
// A stream is a sequence of zero or more Token events followed by exactly one
// terminal event: EndOfStream when the provider finished, or TerminalError when
// it failed in a way that will not be retried. The Event interface is sealed so a
// type switch over the three variants is exhaustive.
//
// Events carry the run id they belong to and a timestamp. They marshal to JSON
// with an "event" discriminator ("token", "error", "end") so they can be relayed
// over a broker and restored with FromJSON:
//
//	data, _ := events.ToJSON(events.NewToken(runID, 0, "Hello"))
//	ev, _ := events.FromJSON(data)
//
// TerminalError also has a narrower wire form, produced by Wire, which is the
// object written to HTTP callers when a stream fails.
package events

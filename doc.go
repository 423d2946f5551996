/*
Package hoot streams text from large-language-model providers to a caller as it is
generated, retrying transient provider failures and reporting permanent ones as a
single structured error.

A call is described by a GenerationRequest and consumed as an iterator of events:

	s, err := hoot.New(creds)
	if err != nil {
		// handle error
	}

	req, _ := hoot.NewRequest("claude-3-7-sonnet-latest", "Write a haiku about owls",
		hoot.WithTemperature(0.2),
	)

	for ev := range s.StreamGeneration(ctx, req) {
		switch e := ev.(type) {
		case events.Token:
			fmt.Print(e.Text)
		case events.TerminalError:
			// exactly one, and always last
		case events.EndOfStream:
			// the stream completed
		}
	}

# Flow

Each call validates the request and assembles the prompt once. The executor then
runs attempts: the model identifier is resolved to a provider adapter, the adapter
is started on its own goroutine and its tokens are relayed through a bounded
channel. A failed attempt is classified; rate limits and timeouts are retried with
exponential backoff, everything else ends the stream.

Tokens already delivered by a failed attempt are not retracted. Every token
carries the attempt that produced it.

# Observers

Events can be mirrored to hooks (WithHooks) and to a broker topic (WithBroker),
and the final outcome of every call can be stored through a Recorder.
*/
package hoot

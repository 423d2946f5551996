// Package executor drives a generation through its retry state machine.
//
// A Controller starts attempts one at a time. The tokens of an attempt are
// forwarded to the caller as they arrive. When the attempt fails the failure is
// classified once: rate limits and timeouts are retried after an exponential
// backoff while the retry budget lasts; anything else ends the stream with a
// single terminal error. A successful attempt ends the stream with EndOfStream.
//
//	Attempting ──ok──────────────▶ Succeeded
//	    │  ▲
//	    │  └──── RetryScheduled (sleep BaseDelay·2^(n+1))
//	    │              ▲
//	    ├──retryable───┘
//	    └──otherwise─────────────▶ Failed
//
// Tokens already delivered by a failed attempt are not retracted; the next
// attempt regenerates its output from the start.
package executor

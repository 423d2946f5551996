// Package provider defines the contract every LLM vendor adapter satisfies and
// the rules that map a logical model identifier onto one of them.
//
// An Adapter performs one blocking, streaming generation call. Each text
// fragment the vendor produces is handed to the TokenFunc as soon as it
// arrives, and the full text is returned once the vendor finishes:
//
//	text, err := adapter.Invoke(ctx, prompt, provider.Params{Model: "gpt-4o-mini"}, func(tok string) error {
//	    fmt.Print(tok)
//	    return nil
//	})
//
// Adapters never retry on their own. Failures are returned as they happened,
// preferably as *APIError so callers can see the upstream status code, and the
// decision to try again belongs to the caller.
//
// Model identifiers are routed by FamilyOf: the llama aliases go to Groq,
// anything starting with "claude" goes to Anthropic and everything else goes to
// OpenAI. A Resolver builds at most one adapter per family and caches it.
package provider

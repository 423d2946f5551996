/*
Package openai is the default provider adapter. It streams chat completions
from the OpenAI API, or from any endpoint speaking the same protocol when a
base URL override is configured.

The prompt is sent as a single user message. Every non-empty content delta is
forwarded to the token callback as it arrives and the chunks are accumulated
into the final text with openai.ChatCompletionAccumulator.

The SDK's own retry loop is disabled: a failed call is reported once, as a
*provider.APIError when the API answered with an error status, and retrying is
left to the caller.

	adapter, err := openai.New(provider.Credentials{OpenAIKey: key})
	if err != nil {
		return err
	}
	text, err := adapter.Invoke(ctx, prompt, provider.Params{Model: "gpt-4o-mini"}, onToken)
*/
package openai

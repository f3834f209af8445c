// Package llm provides a chat completion client for OpenAI-compatible
// endpoints such as Groq and the Hugging Face router.
//
// # Entry Points
//
// NewClient: construct a client from Config.
// Client.Complete: send system/user prompts, receive the text reply.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, network timeouts and empty
// replies with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). A Retry-After header overrides the computed delay. Context
// cancellation aborts retries immediately.
package llm

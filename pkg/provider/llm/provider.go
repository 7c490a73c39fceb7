// Package llm defines the Provider interface for the chat model backends that
// generate teaching replies.
//
// A provider wraps a remote chat API (OpenAI, Baidu ERNIE) or a deterministic
// offline model and exposes a uniform completion call. The reply generator
// holds exactly one Provider; fallback on failure happens above this
// interface, never by silently switching backends inside an implementation.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Request carries everything the model needs for one completion. The Prompt
// already embeds learner context and conversation history; providers must not
// append their own instructions.
type Request struct {
	// SystemPrompt is an optional high-priority instruction. Providers whose
	// API lacks a dedicated system slot should prepend it to Prompt.
	SystemPrompt string

	// Prompt is the user-role message driving the completion. Must be
	// non-empty.
	Prompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero means use
	// the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Response is the model's completion.
type Response struct {
	// Content is the full text of the reply.
	Content string

	// Model is the backend model identifier that produced the reply, for
	// logging. May be empty.
	Model string
}

// Provider is the abstraction over any chat model backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider's registry name (e.g. "openai", "wenxin",
	// "mock") for logs and metrics.
	Name() string
}

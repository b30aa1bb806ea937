// Package llm implements the C1 adapter: a vendor-agnostic LLMClient
// speaking one of two wire dialects (Ollama-style "generate", or
// OpenAI-compatible chat-completions) behind a single interface, with
// token budgeting, a circuit breaker, and a bounded connection pool.
// Grounded on original_source/llm/client.py (the abstract LLMClient base)
// and its two concrete adapters, ollama_client.py and vllm_client.py.
package llm

import (
	"context"
	"time"
)

// Dialect selects which wire format a Client speaks.
type Dialect string

const (
	DialectGenerate        Dialect = "generate"
	DialectChatCompletions Dialect = "chat_completions"
)

// Request is a single generation request.
type Request struct {
	Prompt      string
	System      string
	Temperature float32
	// MaxTokens is the caller's requested output budget. 0 means "use the
	// adapter's computed safe maximum."
	MaxTokens int
}

// Response is a single generation result.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
	Model            string
	Latency          time.Duration
}

// Client is the contract every dialect adapter implements. Generate and
// HealthCheck both take a context so a cancelled or timed-out request
// unwinds the in-flight HTTP call instead of leaking it.
type Client interface {
	// Generate produces a completion for req.
	Generate(ctx context.Context, req Request) (Response, error)
	// HealthCheck reports whether the backend is reachable and serving.
	HealthCheck(ctx context.Context) error
	// Model returns the configured model name.
	Model() string
}

// ConnectionError means the backend could not be reached at all (DNS,
// TCP, TLS handshake, or a connection-level timeout).
type ConnectionError struct {
	Endpoint string
	Cause    error
}

func (e *ConnectionError) Error() string {
	return "llm connection error to " + e.Endpoint + ": " + e.Cause.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// GenerationError means the backend was reached but returned an error
// response or malformed output (non-2xx status, unexpected body shape).
type GenerationError struct {
	Endpoint string
	Cause    error
}

func (e *GenerationError) Error() string {
	return "llm generation error from " + e.Endpoint + ": " + e.Cause.Error()
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// Package llm provides the client for the external text-generation service
// used by the extraction engine. A CallFunc hides the provider wire format
// behind a prompt-in, text-out signature so the engine stays provider-neutral.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable marks timeout or connectivity failures against the external
// generation service. Callers use it to distinguish "retry on a later cycle"
// from malformed-response failures.
var ErrUnavailable = errors.New("generation service unavailable")

// CallFunc is the signature for a single generation call.
type CallFunc func(ctx context.Context, prompt string) (string, error)

// Config holds the settings for building a caller.
type Config struct {
	Provider    string  // "openai", "anthropic", or "ollama"
	Model       string  // e.g. "gpt-4o-mini", "llama3.2"
	APIKey      string  // explicit API key (highest priority)
	BaseURL     string  // override base URL
	Temperature float64
	MaxTokens   int
	TimeoutMs   int
}

package generation

import (
	"context"
)

// Params carries the per-call generation settings taken from a
// processor's stored configuration. Callers are expected to resolve
// defaults (domain.GenerationParams does this) before building Params.
type Params struct {
	// Model optionally overrides the client's configured model.
	Model string

	// Temperature is the sampling temperature for this call.
	Temperature float64

	// MaxTokens bounds the generated output length.
	MaxTokens int

	// StopSequences stop generation when emitted, when non-empty.
	StopSequences []string

	// SystemPrompt is prepended as a system instruction, when non-empty.
	SystemPrompt string
}

// Generator defines the interface for the external text-generation
// backend. This is the boundary between the pipeline core and the LLM
// service; implementations live in internal/platform.
type Generator interface {
	// Generate sends the rendered prompt to the backend and returns the
	// generated text. A returned error is terminal for this invocation
	// from the caller's point of view: any transient-failure retrying
	// happens inside the implementation.
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}

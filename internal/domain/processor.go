package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ProcessorStatus represents whether a processor participates in dispatch.
type ProcessorStatus string

// Possible processor status values. Only active processors are dispatched;
// testing processors are visible to operators but never scheduled.
const (
	ProcessorStatusActive   ProcessorStatus = "active"
	ProcessorStatusInactive ProcessorStatus = "inactive"
	ProcessorStatusTesting  ProcessorStatus = "testing"
)

// InterpreterType selects the interpreter for a processor's optional
// post-processing step.
type InterpreterType string

// Supported interpreter kinds
const (
	InterpreterNone       InterpreterType = "none"
	InterpreterPython     InterpreterType = "python"
	InterpreterJavaScript InterpreterType = "javascript"
)

// Generation parameter defaults applied when a processor leaves them unset.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// Common validation errors for Processor
var (
	ErrEmptyProcessorID       = errors.New("processor ID cannot be empty")
	ErrEmptyProcessorTemplate = errors.New("processor prompt template cannot be empty")
	ErrInvalidProcessorStatus = errors.New("invalid processor status")
	ErrInvalidInterpreter     = errors.New("invalid interpreter type")
)

// GenerationParams holds a processor's stored generation configuration.
// Zero-valued optional fields mean "use the default".
type GenerationParams struct {
	Model         string   `json:"model,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
	SystemPrompt  string   `json:"system_prompt,omitempty"`
}

// EffectiveTemperature returns the configured temperature or the default.
func (p GenerationParams) EffectiveTemperature() float64 {
	if p.Temperature != nil {
		return *p.Temperature
	}
	return DefaultTemperature
}

// EffectiveMaxTokens returns the configured max output tokens or the default.
func (p GenerationParams) EffectiveMaxTokens() int {
	if p.MaxTokens != nil {
		return *p.MaxTokens
	}
	return DefaultMaxTokens
}

// Processor is the pipeline's read-only projection of an admin-defined
// processor: the prompt template, generation parameters, and the optional
// post-processing script. The full processor CRUD lives outside this
// service; the pipeline only consumes it.
type Processor struct {
	ID                 uuid.UUID        `json:"id"`
	Name               string           `json:"name"`
	Version            string           `json:"version"`
	PromptTemplate     string           `json:"prompt_template"`
	PostProcessingCode string           `json:"post_processing_code,omitempty"`
	Interpreter        InterpreterType  `json:"interpreter"`
	Status             ProcessorStatus  `json:"status"`
	Generation         GenerationParams `json:"generation"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Validate checks if the Processor has valid data.
func (p *Processor) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyProcessorID
	}

	if p.PromptTemplate == "" {
		return ErrEmptyProcessorTemplate
	}

	if !isValidProcessorStatus(p.Status) {
		return ErrInvalidProcessorStatus
	}

	if !IsValidInterpreter(p.Interpreter) {
		return ErrInvalidInterpreter
	}

	return nil
}

// HasPostProcessing reports whether the executor should run the sandbox
// step for this processor.
func (p *Processor) HasPostProcessing() bool {
	return p.PostProcessingCode != "" && p.Interpreter != InterpreterNone
}

// IsValidInterpreter checks if the given interpreter is a known kind.
func IsValidInterpreter(interpreter InterpreterType) bool {
	switch interpreter {
	case InterpreterNone, InterpreterPython, InterpreterJavaScript:
		return true
	default:
		return false
	}
}

// isValidProcessorStatus checks if the given status is a valid ProcessorStatus.
func isValidProcessorStatus(status ProcessorStatus) bool {
	switch status {
	case ProcessorStatusActive, ProcessorStatusInactive, ProcessorStatusTesting:
		return true
	default:
		return false
	}
}

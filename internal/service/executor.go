package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cognivers/pipeline/internal/domain"
	"github.com/cognivers/pipeline/internal/generation"
	"github.com/cognivers/pipeline/internal/render"
	"github.com/cognivers/pipeline/internal/sandbox"
	"github.com/cognivers/pipeline/internal/store"
)

// sandboxInput is the document piped to post-processing code on stdin.
type sandboxInput struct {
	Output     string         `json:"output"`
	PromptData render.Context `json:"prompt_data"`
}

// ExecutorService carries one processor invocation through its stages:
// load, render, generate, post-process, persist. Intermediate outputs are
// persisted as soon as they exist, so a failure in a later stage never
// loses the work of an earlier one.
type ExecutorService struct {
	results    store.ResultStore
	processors store.ProcessorStore
	responses  store.ResponseStore
	generator  generation.Generator
	sandbox    sandbox.Sandbox
	logger     *slog.Logger
}

// NewExecutorService creates an ExecutorService with validated dependencies.
func NewExecutorService(
	results store.ResultStore,
	processors store.ProcessorStore,
	responses store.ResponseStore,
	generator generation.Generator,
	sb sandbox.Sandbox,
	logger *slog.Logger,
) (*ExecutorService, error) {
	if results == nil {
		return nil, errors.New("result store cannot be nil")
	}
	if processors == nil {
		return nil, errors.New("processor store cannot be nil")
	}
	if responses == nil {
		return nil, errors.New("response store cannot be nil")
	}
	if generator == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if sb == nil {
		return nil, errors.New("sandbox cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &ExecutorService{
		results:    results,
		processors: processors,
		responses:  responses,
		generator:  generator,
		sandbox:    sb,
		logger:     logger.With(slog.String("component", "executor_service")),
	}, nil
}

// Execute runs the invocation recorded by the given result row and leaves
// the row in a terminal state. Data and configuration problems are
// recorded on the row and return nil: redelivering the job cannot fix
// them. A non-nil error means the row could not be read or written, and
// the row may still be non-terminal.
//
// Execute is safe to call more than once per result: terminal rows are
// left untouched, which makes at-least-once delivery harmless.
func (s *ExecutorService) Execute(ctx context.Context, resultID uuid.UUID) (err error) {
	log := s.logger.With(slog.String("result_id", resultID.String()))

	result, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Error("result row missing, cannot execute")
			return ErrResultNotFound
		}
		return fmt.Errorf("loading result: %w", err)
	}

	if result.IsTerminal() {
		log.Info("result already terminal, skipping",
			slog.String("status", string(result.Status)))
		return nil
	}

	// A panic anywhere below must not leave the row stuck at processing.
	defer func() {
		if p := recover(); p != nil {
			log.Error("panic during execution", slog.Any("panic", p))
			err = s.failResult(ctx, result, FailureInternal, fmt.Sprintf("panic: %v", p))
		}
	}()

	log = log.With(
		slog.String("response_id", result.ResponseID.String()),
		slog.String("processor_id", result.ProcessorID.String()))

	processor, err := s.processors.GetByID(ctx, result.ProcessorID)
	if err != nil {
		if store.IsNotFoundError(err) {
			// Same referential failure as a vanished response.
			return s.failResult(ctx, result, FailureData, "processor no longer exists")
		}
		return fmt.Errorf("loading processor: %w", err)
	}

	meta, err := s.responses.GetMeta(ctx, result.ResponseID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return s.failResult(ctx, result, FailureData, "response no longer exists")
		}
		return fmt.Errorf("loading response: %w", err)
	}

	answers, err := s.responses.ListAnswers(ctx, result.ResponseID, result.QuestionIDs)
	if err != nil {
		return fmt.Errorf("loading answers: %w", err)
	}
	if len(answers) == 0 {
		return s.failResult(ctx, result, FailureData, "no answered questions for this processor")
	}

	renderCtx := render.BuildContext(*meta, answers)
	prompt, err := render.Render(processor.PromptTemplate, renderCtx)
	if err != nil {
		return s.failResult(ctx, result, FailureConfiguration,
			fmt.Sprintf("rendering prompt template: %v", err))
	}

	result.Prompt = &prompt
	if err := s.saveProgress(ctx, result); err != nil {
		return err
	}

	raw, err := s.generator.Generate(ctx, prompt, generation.Params{
		Model:         processor.Generation.Model,
		Temperature:   processor.Generation.EffectiveTemperature(),
		MaxTokens:     processor.Generation.EffectiveMaxTokens(),
		StopSequences: processor.Generation.StopSequences,
		SystemPrompt:  processor.Generation.SystemPrompt,
	})
	if err != nil {
		return s.failResult(ctx, result, FailureBackend, err.Error())
	}

	result.RawOutput = &raw
	if err := s.saveProgress(ctx, result); err != nil {
		return err
	}

	if processor.HasPostProcessing() {
		processed, runErr := s.postProcess(ctx, processor, raw, renderCtx)
		if runErr != nil {
			kind := FailureSandbox
			if errors.Is(runErr, sandbox.ErrUnsupportedInterpreter) {
				kind = FailureConfiguration
			}
			return s.failResult(ctx, result, kind, runErr.Error())
		}
		result.ProcessedOutput = processed
	}

	result.MarkCompleted()
	if err := s.results.Update(ctx, result); err != nil {
		return fmt.Errorf("persisting completed result: %w", err)
	}

	log.Info("invocation completed",
		slog.Int("prompt_chars", len(prompt)),
		slog.Int("raw_chars", len(raw)),
		slog.Bool("post_processed", processor.HasPostProcessing()))

	return nil
}

// postProcess runs the processor's code in the sandbox against the raw
// generation output and the prompt context it was produced from.
func (s *ExecutorService) postProcess(
	ctx context.Context,
	processor *domain.Processor,
	raw string,
	renderCtx render.Context,
) (json.RawMessage, error) {
	input, err := json.Marshal(sandboxInput{Output: raw, PromptData: renderCtx})
	if err != nil {
		return nil, fmt.Errorf("encoding sandbox input: %w", err)
	}

	return s.sandbox.Run(ctx, processor.Interpreter, processor.PostProcessingCode, input)
}

// saveProgress persists the intermediate state of a still-processing row.
func (s *ExecutorService) saveProgress(ctx context.Context, result *domain.ProcessingResult) error {
	result.UpdatedAt = time.Now().UTC()
	if err := s.results.Update(ctx, result); err != nil {
		return fmt.Errorf("persisting progress: %w", err)
	}
	return nil
}

// failResult records a terminal failure on the row. The invocation error
// itself is not propagated: it is part of the result now, and the queue
// retrying the job would only repeat the same failure. Only a write error
// on the row itself comes back.
func (s *ExecutorService) failResult(
	ctx context.Context,
	result *domain.ProcessingResult,
	kind FailureKind,
	detail string,
) error {
	message := failureMessage(kind, detail)
	result.MarkFailed(message)

	s.logger.Warn("invocation failed",
		slog.String("result_id", result.ID.String()),
		slog.String("kind", string(kind)),
		slog.String("error", detail))

	if err := s.results.Update(ctx, result); err != nil {
		return fmt.Errorf("persisting failed result: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cognivers/pipeline/internal/domain"
	"github.com/cognivers/pipeline/internal/events"
	"github.com/cognivers/pipeline/internal/store"
)

// DispatchOutcome summarizes one dispatch pass over a response.
type DispatchOutcome struct {
	// Queued counts the processor invocations handed to the task queue.
	Queued int `json:"queued"`

	// Skipped counts the processors that already had a completed result.
	Skipped int `json:"skipped"`
}

// ResponseFailure records one response a queue-all pass could not
// dispatch. The remaining responses are unaffected.
type ResponseFailure struct {
	ResponseID uuid.UUID `json:"response_id"`
	Error      string    `json:"error"`
}

// QueueAllOutcome summarizes a queue-all pass over a questionnaire.
type QueueAllOutcome struct {
	Responses int               `json:"responses"`
	Queued    int               `json:"queued"`
	Skipped   int               `json:"skipped"`
	Failures  []ResponseFailure `json:"failures,omitempty"`
}

// DispatchService decides which processors run against a response and
// creates the durable result rows the executor will fill in. The result
// row is always committed before the job is enqueued, so an invocation in
// flight always has a record to update.
type DispatchService struct {
	txRunner      store.TxRunner
	results       store.ResultStore
	processors    store.ProcessorStore
	responses     store.ResponseStore
	emitter       events.EventEmitter
	logger        *slog.Logger
	queueAllLimit int
}

// NewDispatchService creates a DispatchService with validated dependencies.
func NewDispatchService(
	txRunner store.TxRunner,
	results store.ResultStore,
	processors store.ProcessorStore,
	responses store.ResponseStore,
	emitter events.EventEmitter,
	logger *slog.Logger,
	queueAllLimit int,
) (*DispatchService, error) {
	if txRunner == nil {
		return nil, errors.New("transaction runner cannot be nil")
	}
	if results == nil {
		return nil, errors.New("result store cannot be nil")
	}
	if processors == nil {
		return nil, errors.New("processor store cannot be nil")
	}
	if responses == nil {
		return nil, errors.New("response store cannot be nil")
	}
	if emitter == nil {
		return nil, errors.New("event emitter cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if queueAllLimit <= 0 {
		return nil, errors.New("queue-all concurrency must be positive")
	}

	return &DispatchService{
		txRunner:      txRunner,
		results:       results,
		processors:    processors,
		responses:     responses,
		emitter:       emitter,
		logger:        logger.With(slog.String("component", "dispatch_service")),
		queueAllLimit: queueAllLimit,
	}, nil
}

// Dispatch fans one response out into per-processor invocations. For each
// active processor bound to the response's questionnaire it commits a
// processing-status result row, then emits an execute job for it.
// Processors that already completed are skipped; a response with no
// active bindings dispatches nothing and is not an error.
func (s *DispatchService) Dispatch(ctx context.Context, responseID uuid.UUID) (DispatchOutcome, error) {
	log := s.logger.With(slog.String("response_id", responseID.String()))

	meta, err := s.responses.GetMeta(ctx, responseID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return DispatchOutcome{}, ErrResponseNotFound
		}
		return DispatchOutcome{}, &DispatchError{Operation: "loading response", Err: err}
	}

	bindings, err := s.processors.ActiveBindings(ctx, meta.QuestionnaireID)
	if err != nil {
		return DispatchOutcome{}, &DispatchError{Operation: "loading processor bindings", Err: err}
	}

	if len(bindings) == 0 {
		log.Info("no active processors bound to questionnaire, nothing to dispatch",
			slog.String("questionnaire_id", meta.QuestionnaireID.String()))
		return DispatchOutcome{}, nil
	}

	var outcome DispatchOutcome
	for _, binding := range bindings {
		queued, err := s.dispatchOne(ctx, responseID, binding)
		if err != nil {
			return outcome, err
		}
		if queued {
			outcome.Queued++
		} else {
			outcome.Skipped++
		}
	}

	log.Info("dispatch pass finished",
		slog.Int("queued", outcome.Queued),
		slog.Int("skipped", outcome.Skipped))

	return outcome, nil
}

// dispatchOne commits the result row for one binding and enqueues its
// execute job. Returns false when the pair already completed.
func (s *DispatchService) dispatchOne(
	ctx context.Context,
	responseID uuid.UUID,
	binding domain.ProcessorBinding,
) (bool, error) {
	processor := binding.Processor

	existing, err := s.results.FindByPair(ctx, responseID, processor.ID)
	if err != nil && !store.IsNotFoundError(err) {
		return false, &DispatchError{Operation: "checking existing result", Err: err}
	}
	if existing != nil && existing.Status == domain.ResultStatusCompleted {
		s.logger.Debug("processor already completed for response, skipping",
			slog.String("response_id", responseID.String()),
			slog.String("processor_id", processor.ID.String()))
		return false, nil
	}

	result, err := domain.NewProcessingResult(
		responseID,
		processor.ID,
		versionTag(processor),
		binding.QuestionIDs,
	)
	if err != nil {
		return false, &DispatchError{Operation: "building result", Err: err}
	}

	err = s.txRunner.InTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.results.WithTx(tx).Upsert(ctx, result)
	})
	if err != nil {
		return false, &DispatchError{Operation: "saving result", Err: err}
	}

	event, err := events.NewTaskRequestEvent(
		events.JobExecuteProcessor,
		events.ExecutePayload{ResultID: result.ID},
	)
	if err != nil {
		return false, &DispatchError{Operation: "building execute event", Err: err}
	}

	// The row is already committed. If the enqueue fails the result sits
	// at processing until the stuck sweep or a manual requeue picks it up,
	// which beats a job without a row to write to.
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		s.logger.Error("failed to enqueue execute job for committed result",
			slog.String("result_id", result.ID.String()),
			slog.String("error", err.Error()))
		return false, &DispatchError{Operation: "enqueueing execute job", Err: err}
	}

	return true, nil
}

// Requeue clears previous results for a response and dispatches it again.
// With a processor ID only that processor's result is deleted; other
// processors keep their state and complete ones are skipped by the
// subsequent dispatch pass.
func (s *DispatchService) Requeue(
	ctx context.Context,
	responseID uuid.UUID,
	processorID *uuid.UUID,
) (DispatchOutcome, error) {
	if _, err := s.responses.GetMeta(ctx, responseID); err != nil {
		if store.IsNotFoundError(err) {
			return DispatchOutcome{}, ErrResponseNotFound
		}
		return DispatchOutcome{}, &DispatchError{Operation: "loading response", Err: err}
	}

	var (
		deleted int64
		err     error
	)
	if processorID != nil {
		deleted, err = s.results.DeleteByPair(ctx, responseID, *processorID)
	} else {
		deleted, err = s.results.DeleteByResponse(ctx, responseID)
	}
	if err != nil {
		return DispatchOutcome{}, &DispatchError{Operation: "clearing previous results", Err: err}
	}

	s.logger.Info("cleared previous results for requeue",
		slog.String("response_id", responseID.String()),
		slog.Int64("deleted", deleted))

	return s.Dispatch(ctx, responseID)
}

// QueueAll dispatches every response of a questionnaire, a bounded number
// at a time. One response failing does not stop the pass; failures are
// collected in the outcome.
func (s *DispatchService) QueueAll(ctx context.Context, questionnaireID uuid.UUID) (QueueAllOutcome, error) {
	responseIDs, err := s.responses.ListResponseIDs(ctx, questionnaireID)
	if err != nil {
		return QueueAllOutcome{}, &DispatchError{Operation: "listing responses", Err: err}
	}

	outcome := QueueAllOutcome{Responses: len(responseIDs)}
	if len(responseIDs) == 0 {
		return outcome, nil
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.queueAllLimit)

	for _, responseID := range responseIDs {
		group.Go(func() error {
			one, err := s.Dispatch(groupCtx, responseID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.Failures = append(outcome.Failures, ResponseFailure{
					ResponseID: responseID,
					Error:      err.Error(),
				})
				return nil
			}
			outcome.Queued += one.Queued
			outcome.Skipped += one.Skipped
			return nil
		})
	}

	// Goroutines collect failures instead of returning errors, so Wait
	// only reflects context cancellation.
	if err := group.Wait(); err != nil {
		return outcome, &DispatchError{Operation: "queueing all responses", Err: err}
	}

	s.logger.Info("queue-all pass finished",
		slog.String("questionnaire_id", questionnaireID.String()),
		slog.Int("responses", outcome.Responses),
		slog.Int("queued", outcome.Queued),
		slog.Int("skipped", outcome.Skipped),
		slog.Int("failures", len(outcome.Failures)))

	return outcome, nil
}

// versionTag pins the processor configuration a result was produced with.
func versionTag(processor *domain.Processor) string {
	if processor.Version != "" {
		return processor.Version
	}
	if processor.Generation.Model != "" {
		return processor.Generation.Model
	}
	return "unversioned"
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cognivers/pipeline/internal/domain"
	"github.com/cognivers/pipeline/internal/events"
	"github.com/cognivers/pipeline/internal/generation"
	"github.com/cognivers/pipeline/internal/store"
)

// fakeResultStore is an in-memory ResultStore for service tests.
type fakeResultStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.ProcessingResult

	upsertErr error
	getErr    error
	updateErr error
	deleteErr error

	updateCalls int
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{rows: make(map[uuid.UUID]*domain.ProcessingResult)}
}

func cloneResult(r *domain.ProcessingResult) *domain.ProcessingResult {
	clone := *r
	clone.QuestionIDs = append([]uuid.UUID(nil), r.QuestionIDs...)
	if r.ProcessedOutput != nil {
		clone.ProcessedOutput = append(json.RawMessage(nil), r.ProcessedOutput...)
	}
	return &clone
}

func (f *fakeResultStore) Upsert(ctx context.Context, result *domain.ProcessingResult) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ResponseID == result.ResponseID && row.ProcessorID == result.ProcessorID {
			result.ID = row.ID
			result.CreatedAt = row.CreatedAt
			f.rows[row.ID] = cloneResult(result)
			return nil
		}
	}
	f.rows[result.ID] = cloneResult(result)
	return nil
}

func (f *fakeResultStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProcessingResult, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, store.ErrResultNotFound
	}
	return cloneResult(row), nil
}

func (f *fakeResultStore) FindByPair(ctx context.Context, responseID, processorID uuid.UUID) (*domain.ProcessingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ResponseID == responseID && row.ProcessorID == processorID {
			return cloneResult(row), nil
		}
	}
	return nil, store.ErrResultNotFound
}

func (f *fakeResultStore) ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*domain.ProcessingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []*domain.ProcessingResult
	for _, row := range f.rows {
		if row.ResponseID == responseID {
			results = append(results, cloneResult(row))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

func (f *fakeResultStore) Update(ctx context.Context, result *domain.ProcessingResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.rows[result.ID]; !ok {
		return store.ErrResultNotFound
	}
	f.rows[result.ID] = cloneResult(result)
	return nil
}

func (f *fakeResultStore) DeleteByResponse(ctx context.Context, responseID uuid.UUID) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, row := range f.rows {
		if row.ResponseID == responseID {
			delete(f.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeResultStore) DeleteByPair(ctx context.Context, responseID, processorID uuid.UUID) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, row := range f.rows {
		if row.ResponseID == responseID && row.ProcessorID == processorID {
			delete(f.rows, id)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeResultStore) WithTx(tx *sql.Tx) store.ResultStore {
	return f
}

// mustRow fetches a row directly, bypassing configured errors.
func (f *fakeResultStore) mustRow(id uuid.UUID) *domain.ProcessingResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil
	}
	return cloneResult(row)
}

func (f *fakeResultStore) rowByPair(responseID, processorID uuid.UUID) *domain.ProcessingResult {
	row, err := f.FindByPair(context.Background(), responseID, processorID)
	if err != nil {
		return nil
	}
	return row
}

// fakeProcessorStore serves canned processors and bindings.
type fakeProcessorStore struct {
	processors  map[uuid.UUID]*domain.Processor
	bindings    map[uuid.UUID][]domain.ProcessorBinding
	getErr      error
	bindingsErr error
}

func newFakeProcessorStore() *fakeProcessorStore {
	return &fakeProcessorStore{
		processors: make(map[uuid.UUID]*domain.Processor),
		bindings:   make(map[uuid.UUID][]domain.ProcessorBinding),
	}
}

func (f *fakeProcessorStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Processor, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	processor, ok := f.processors[id]
	if !ok {
		return nil, store.ErrProcessorNotFound
	}
	clone := *processor
	return &clone, nil
}

func (f *fakeProcessorStore) ActiveBindings(ctx context.Context, questionnaireID uuid.UUID) ([]domain.ProcessorBinding, error) {
	if f.bindingsErr != nil {
		return nil, f.bindingsErr
	}
	return f.bindings[questionnaireID], nil
}

// fakeResponseStore serves canned response metadata and answers.
type fakeResponseStore struct {
	metas       map[uuid.UUID]*domain.ResponseMeta
	answers     map[uuid.UUID][]domain.QuestionAnswer
	responseIDs map[uuid.UUID][]uuid.UUID

	metaErr    error
	answersErr error
	listErr    error
}

func newFakeResponseStore() *fakeResponseStore {
	return &fakeResponseStore{
		metas:       make(map[uuid.UUID]*domain.ResponseMeta),
		answers:     make(map[uuid.UUID][]domain.QuestionAnswer),
		responseIDs: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeResponseStore) GetMeta(ctx context.Context, responseID uuid.UUID) (*domain.ResponseMeta, error) {
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	meta, ok := f.metas[responseID]
	if !ok {
		return nil, store.ErrResponseNotFound
	}
	clone := *meta
	return &clone, nil
}

func (f *fakeResponseStore) ListAnswers(ctx context.Context, responseID uuid.UUID, questionIDs []uuid.UUID) ([]domain.QuestionAnswer, error) {
	if f.answersErr != nil {
		return nil, f.answersErr
	}
	wanted := make(map[uuid.UUID]bool, len(questionIDs))
	for _, id := range questionIDs {
		wanted[id] = true
	}
	var answers []domain.QuestionAnswer
	for _, answer := range f.answers[responseID] {
		if wanted[answer.QuestionID] {
			answers = append(answers, answer)
		}
	}
	sort.Slice(answers, func(i, j int) bool {
		return answers[i].QuestionID.String() < answers[j].QuestionID.String()
	})
	return answers, nil
}

func (f *fakeResponseStore) ListResponseIDs(ctx context.Context, questionnaireID uuid.UUID) ([]uuid.UUID, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.responseIDs[questionnaireID], nil
}

// fakeGenerator returns a canned output or error and records the call.
// Setting failContaining makes only prompts containing that substring
// fail with failErr while every other prompt still succeeds.
type fakeGenerator struct {
	mu             sync.Mutex
	output         string
	err            error
	failContaining string
	failErr        error
	panics         bool

	calls   int
	prompts []string
	params  []generation.Params
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, params generation.Params) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.params = append(f.params, params)
	f.mu.Unlock()
	if f.panics {
		panic("generator blew up")
	}
	if f.err != nil {
		return "", f.err
	}
	if f.failContaining != "" && strings.Contains(prompt, f.failContaining) {
		return "", f.failErr
	}
	return f.output, nil
}

// fakeSandbox returns a canned JSON object or error and records the call.
type fakeSandbox struct {
	output []byte
	err    error

	calls        int
	interpreters []domain.InterpreterType
	codes        []string
	inputs       [][]byte
}

func (f *fakeSandbox) Run(ctx context.Context, interpreter domain.InterpreterType, code string, input []byte) ([]byte, error) {
	f.calls++
	f.interpreters = append(f.interpreters, interpreter)
	f.codes = append(f.codes, code)
	f.inputs = append(f.inputs, append([]byte(nil), input...))
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

// fakeEmitter records emitted events.
type fakeEmitter struct {
	mu      sync.Mutex
	events  []*events.TaskRequestEvent
	emitErr error
}

func (f *fakeEmitter) RegisterHandler(handler events.EventHandler) {}

func (f *fakeEmitter) EmitEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEmitter) emitted() []*events.TaskRequestEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*events.TaskRequestEvent(nil), f.events...)
}

// fakeTxRunner runs the function without a real transaction.
type fakeTxRunner struct {
	beginErr error
}

func (f *fakeTxRunner) InTransaction(ctx context.Context, fn store.TxFn) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	return fn(ctx, nil)
}

package api

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cognivers/pipeline/internal/domain"
	"github.com/cognivers/pipeline/internal/events"
	"github.com/cognivers/pipeline/internal/store"
)

// mockEventEmitter records emitted events and optionally fails.
type mockEventEmitter struct {
	events  []*events.TaskRequestEvent
	emitErr error
}

func (m *mockEventEmitter) RegisterHandler(handler events.EventHandler) {}

func (m *mockEventEmitter) EmitEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if m.emitErr != nil {
		return m.emitErr
	}
	m.events = append(m.events, event)
	return nil
}

// mockResponseStore answers GetMeta from a fixed set of known responses.
type mockResponseStore struct {
	metas   map[uuid.UUID]*domain.ResponseMeta
	metaErr error
}

func (m *mockResponseStore) GetMeta(ctx context.Context, responseID uuid.UUID) (*domain.ResponseMeta, error) {
	if m.metaErr != nil {
		return nil, m.metaErr
	}
	meta, ok := m.metas[responseID]
	if !ok {
		return nil, store.ErrResponseNotFound
	}
	return meta, nil
}

func (m *mockResponseStore) ListAnswers(ctx context.Context, responseID uuid.UUID, questionIDs []uuid.UUID) ([]domain.QuestionAnswer, error) {
	return nil, nil
}

func (m *mockResponseStore) ListResponseIDs(ctx context.Context, questionnaireID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

// mockResultStore serves the read operations from fixed result sets. The
// write operations are never reached by the handlers under test.
type mockResultStore struct {
	byID    map[uuid.UUID]*domain.ProcessingResult
	byResp  map[uuid.UUID][]*domain.ProcessingResult
	getErr  error
	listErr error
}

func (m *mockResultStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProcessingResult, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result, ok := m.byID[id]
	if !ok {
		return nil, store.ErrResultNotFound
	}
	return result, nil
}

func (m *mockResultStore) ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*domain.ProcessingResult, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.byResp[responseID], nil
}

func (m *mockResultStore) Upsert(ctx context.Context, result *domain.ProcessingResult) error {
	return nil
}

func (m *mockResultStore) FindByPair(ctx context.Context, responseID, processorID uuid.UUID) (*domain.ProcessingResult, error) {
	return nil, store.ErrResultNotFound
}

func (m *mockResultStore) Update(ctx context.Context, result *domain.ProcessingResult) error {
	return nil
}

func (m *mockResultStore) DeleteByResponse(ctx context.Context, responseID uuid.UUID) (int64, error) {
	return 0, nil
}

func (m *mockResultStore) DeleteByPair(ctx context.Context, responseID, processorID uuid.UUID) (int64, error) {
	return 0, nil
}

func (m *mockResultStore) WithTx(tx *sql.Tx) store.ResultStore {
	return m
}

// newRequestWithURLParam builds a request carrying a chi route parameter,
// the way the router would populate it.
func newRequestWithURLParam(method, target, paramValue string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", paramValue)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/splitpot/api/internal/model"
	"github.com/splitpot/api/internal/service"
)

type mockEventService struct {
	createFunc     func(ctx context.Context, title string) (*model.Event, error)
	titlesFunc     func(ctx context.Context, codes []string) ([]*model.EventTitle, error)
	updateFunc     func(ctx context.Context, code, title string) (*model.Event, error)
	deleteFunc     func(ctx context.Context, code string) error
	awaitFunc      func(ctx context.Context, codes []string) (*model.Event, bool)
	initClientFunc func(req *model.InitClientRequest) *model.InitClientResponse
}

func (m *mockEventService) CreateEvent(ctx context.Context, title string) (*model.Event, error) {
	return m.createFunc(ctx, title)
}

func (m *mockEventService) GetEventTitles(ctx context.Context, codes []string) ([]*model.EventTitle, error) {
	return m.titlesFunc(ctx, codes)
}

func (m *mockEventService) UpdateEvent(ctx context.Context, code, title string) (*model.Event, error) {
	return m.updateFunc(ctx, code, title)
}

func (m *mockEventService) DeleteEvent(ctx context.Context, code string) error {
	return m.deleteFunc(ctx, code)
}

func (m *mockEventService) AwaitUpdates(ctx context.Context, codes []string) (*model.Event, bool) {
	return m.awaitFunc(ctx, codes)
}

func (m *mockEventService) InitClient(req *model.InitClientRequest) *model.InitClientResponse {
	return m.initClientFunc(req)
}

func newTestMux(svc *mockEventService) *http.ServeMux {
	mux := http.NewServeMux()
	NewEventHandler(svc).Register(mux)
	return mux
}

func TestCreateEventReturns201(t *testing.T) {
	svc := &mockEventService{
		createFunc: func(ctx context.Context, title string) (*model.Event, error) {
			return &model.Event{InvitationCode: "ABC123", Title: title, CreatedOn: time.Now()}, nil
		},
	}
	mux := newTestMux(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"title":"Ski Trip"}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var ev model.Event
	if err := json.NewDecoder(rec.Body).Decode(&ev); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if ev.InvitationCode != "ABC123" || ev.Title != "Ski Trip" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestCreateEventEmptyTitleIsValidationError(t *testing.T) {
	svc := &mockEventService{
		createFunc: func(ctx context.Context, title string) (*model.Event, error) {
			return nil, service.ErrTitleRequired
		},
	}
	mux := newTestMux(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"title":""}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestTitlesReturnsRequestedCodes(t *testing.T) {
	var seen []string
	svc := &mockEventService{
		titlesFunc: func(ctx context.Context, codes []string) ([]*model.EventTitle, error) {
			seen = codes
			return []*model.EventTitle{
				{InvitationCode: "ABC123", Title: "Ski Trip"},
				{InvitationCode: "DEF456", Title: "Dinner"},
			}, nil
		},
	}
	mux := newTestMux(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events?query=titles&invitationCodes=ABC123,DEF456", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(seen) != 2 || seen[0] != "ABC123" || seen[1] != "DEF456" {
		t.Errorf("service saw wrong codes: %v", seen)
	}
}

func TestTitlesRejectsUnknownQuery(t *testing.T) {
	mux := newTestMux(&mockEventService{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events?query=everything", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpdatesLongPollTimeoutIs204(t *testing.T) {
	svc := &mockEventService{
		awaitFunc: func(ctx context.Context, codes []string) (*model.Event, bool) {
			return nil, false
		},
	}
	mux := newTestMux(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events/updates?query=updates&invitationCodes=ABC123", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestUpdatesReturnsChangedEvent(t *testing.T) {
	svc := &mockEventService{
		awaitFunc: func(ctx context.Context, codes []string) (*model.Event, bool) {
			return &model.Event{InvitationCode: "ABC123", Title: "Ski Trip"}, true
		},
	}
	mux := newTestMux(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events/updates?query=updates&invitationCodes=ABC123", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var ev model.Event
	if err := json.NewDecoder(rec.Body).Decode(&ev); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if ev.InvitationCode != "ABC123" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestUpdateEventNotFoundIs404(t *testing.T) {
	svc := &mockEventService{
		updateFunc: func(ctx context.Context, code, title string) (*model.Event, error) {
			return nil, service.ErrEventNotFound
		},
	}
	mux := newTestMux(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/events/NOPE99", strings.NewReader(`{"title":"New"}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteEventReturns204(t *testing.T) {
	var deleted string
	svc := &mockEventService{
		deleteFunc: func(ctx context.Context, code string) error {
			deleted = code
			return nil
		},
	}
	mux := newTestMux(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/events/ABC123", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if deleted != "ABC123" {
		t.Errorf("deleted wrong code %q", deleted)
	}
}

func TestInitClientEchoesServiceResponse(t *testing.T) {
	svc := &mockEventService{
		initClientFunc: func(req *model.InitClientRequest) *model.InitClientResponse {
			return &model.InitClientResponse{ClientID: "client-1", ServerTime: time.Now()}
		},
	}
	mux := newTestMux(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/init_client", strings.NewReader(`{"display_name":"desktop"}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp model.InitClientResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ClientID != "client-1" {
		t.Errorf("unexpected client id %q", resp.ClientID)
	}
}

func TestHealthReportsDegradedStorage(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(pingerFunc(func(ctx context.Context) error { return context.DeadlineExceeded }))(rec,
		httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

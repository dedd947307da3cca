package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/splitpot/api/internal/model"
	"github.com/splitpot/api/internal/service"
)

// EventService is the slice of the sync service the REST surface needs.
type EventService interface {
	CreateEvent(ctx context.Context, title string) (*model.Event, error)
	GetEventTitles(ctx context.Context, codes []string) ([]*model.EventTitle, error)
	UpdateEvent(ctx context.Context, code, title string) (*model.Event, error)
	DeleteEvent(ctx context.Context, code string) error
	AwaitUpdates(ctx context.Context, codes []string) (*model.Event, bool)
	InitClient(req *model.InitClientRequest) *model.InitClientResponse
}

// EventHandler handles the event lifecycle endpoints
type EventHandler struct {
	svc EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(svc EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// Register wires the handler's routes into the mux.
func (h *EventHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /events", h.Create)
	mux.HandleFunc("GET /events", h.Titles)
	mux.HandleFunc("GET /events/updates", h.Updates)
	mux.HandleFunc("PUT /events/{code}", h.Update)
	mux.HandleFunc("DELETE /events/{code}", h.Delete)
	mux.HandleFunc("POST /init_client", h.InitClient)
}

// Create handles POST /events. The body carries only a title; the server
// generates the invitation code.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	ev, err := h.svc.CreateEvent(r.Context(), req.Title)
	if err != nil {
		if errors.Is(err, service.ErrTitleRequired) {
			WriteError(w, model.NewValidationError([]model.FieldError{
				{Field: "title", Message: "must not be empty"},
			}))
			return
		}
		WriteError(w, model.NewInternalError(""))
		return
	}

	WriteJSON(w, http.StatusCreated, ev)
}

// Titles handles GET /events?query=titles&invitationCodes=A,B. Clients use
// it to refresh the titles of their remembered events on reconnect.
func (h *EventHandler) Titles(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("query") != "titles" {
		WriteError(w, model.NewBadRequestError("unsupported query"))
		return
	}

	codes := splitCodes(r.URL.Query().Get("invitationCodes"))
	if len(codes) == 0 {
		WriteJSON(w, http.StatusOK, []*model.EventTitle{})
		return
	}

	titles, err := h.svc.GetEventTitles(r.Context(), codes)
	if err != nil {
		WriteError(w, model.NewInternalError(""))
		return
	}
	WriteJSON(w, http.StatusOK, titles)
}

// Updates handles GET /events/updates?query=updates&invitationCodes=A,B.
// The request parks until one of the events sees activity or the long-poll
// timeout elapses, answered with 204 in the latter case.
func (h *EventHandler) Updates(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("query") != "updates" {
		WriteError(w, model.NewBadRequestError("unsupported query"))
		return
	}

	codes := splitCodes(r.URL.Query().Get("invitationCodes"))
	if len(codes) == 0 {
		WriteError(w, model.NewBadRequestError("invitationCodes is required"))
		return
	}

	ev, ok := h.svc.AwaitUpdates(r.Context(), codes)
	if !ok {
		WriteNoContent(w)
		return
	}
	WriteJSON(w, http.StatusOK, ev)
}

// Update handles PUT /events/{code}.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	var req model.UpdateEventRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	ev, err := h.svc.UpdateEvent(r.Context(), code, req.Title)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			WriteError(w, model.NewNotFoundError("event"))
		case errors.Is(err, service.ErrTitleRequired):
			WriteError(w, model.NewValidationError([]model.FieldError{
				{Field: "title", Message: "must not be empty"},
			}))
		default:
			WriteError(w, model.NewInternalError(""))
		}
		return
	}

	WriteJSON(w, http.StatusOK, ev)
}

// Delete handles DELETE /events/{code}.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	if err := h.svc.DeleteEvent(r.Context(), code); err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			WriteError(w, model.NewNotFoundError("event"))
			return
		}
		WriteError(w, model.NewInternalError(""))
		return
	}

	WriteNoContent(w)
}

// InitClient handles POST /init_client.
func (h *EventHandler) InitClient(w http.ResponseWriter, r *http.Request) {
	var req model.InitClientRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	WriteJSON(w, http.StatusOK, h.svc.InitClient(&req))
}

func splitCodes(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}

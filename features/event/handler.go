package event

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"festhub/internal/middleware"
	"festhub/internal/scheduler"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var spec Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		h.writeError(w, r, "BAD_REQUEST", "invalid JSON body", http.StatusBadRequest)
		return
	}

	ev, err := h.service.Create(ctx, spec)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create event", "error", err)
		if isCallerError(err) {
			h.writeError(w, r, "BAD_REQUEST", err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, r, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": ev}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	events, err := h.service.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list events", "error", err)
		h.writeError(w, r, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": events,
		"meta": map[string]int{"count": len(events)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	ev, err := h.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, r, "NOT_FOUND", "event not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to get event", "id", id, "error", err)
		h.writeError(w, r, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": ev}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var spec Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		h.writeError(w, r, "BAD_REQUEST", "invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := h.service.Update(ctx, id, spec); err != nil {
		slog.ErrorContext(ctx, "failed to update event", "id", id, "error", err)
		switch {
		case errors.Is(err, ErrNotFound):
			h.writeError(w, r, "NOT_FOUND", "event not found", http.StatusNotFound)
		case isCallerError(err):
			h.writeError(w, r, "BAD_REQUEST", err.Error(), http.StatusBadRequest)
		default:
			h.writeError(w, r, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": "event updated"}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.service.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, r, "NOT_FOUND", "event not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to delete event", "id", id, "error", err)
		h.writeError(w, r, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": "event deleted"}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func isCallerError(err error) bool {
	return errors.Is(err, ErrInvalidSpec) ||
		errors.Is(err, ErrInvalidTarget) ||
		errors.Is(err, scheduler.ErrInvalidSchedule)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(r.Context()),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

package activity

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"festhub/internal/middleware"
)

// Handler is the internal endpoint the activity service calls whenever an
// activity's schedule, group, or responsible set changes.
type Handler struct {
	adapter *Adapter
}

func NewHandler(adapter *Adapter) *Handler {
	return &Handler{adapter: adapter}
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var act Activity
	if err := json.NewDecoder(r.Body).Decode(&act); err != nil {
		h.writeError(w, r, "BAD_REQUEST", "invalid JSON body", http.StatusBadRequest)
		return
	}
	act.ID = id

	if err := h.adapter.Sync(ctx, act); err != nil {
		slog.ErrorContext(ctx, "failed to sync activity reminders", "activity_id", id, "error", err)
		h.writeError(w, r, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": "reminders synced"}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.adapter.Remove(ctx, id); err != nil {
		slog.ErrorContext(ctx, "failed to remove activity reminders", "activity_id", id, "error", err)
		h.writeError(w, r, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": "reminders removed"}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
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

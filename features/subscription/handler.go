package subscription

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"festhub/internal/middleware"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Create handles the client opt-in: the browser posts its push subscription,
// optionally bound to the logged-in user.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
		UserID *string `json:"user_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "BAD_REQUEST", "invalid JSON body", http.StatusBadRequest)
		return
	}

	sub := &Subscription{
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
		UserID:   req.UserID,
	}
	if err := sub.Validate(); err != nil {
		h.writeError(w, r, "BAD_REQUEST", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.Save(ctx, sub); err != nil {
		slog.ErrorContext(ctx, "failed to save subscription", "error", err)
		h.writeError(w, r, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	slog.InfoContext(ctx, "subscription saved", "id", sub.ID, "has_user", sub.UserID != nil)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": sub}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Delete handles client opt-out by endpoint.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		h.writeError(w, r, "BAD_REQUEST", "endpoint is required", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteByEndpoint(ctx, req.Endpoint); err != nil {
		slog.ErrorContext(ctx, "failed to delete subscription", "error", err)
		h.writeError(w, r, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": "unsubscribed"}); err != nil {
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

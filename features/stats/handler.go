package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"festhub/internal/middleware"
)

type SubscriptionRepo interface {
	Count(ctx context.Context) (int, error)
}

type EventRepo interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	subsRepo  SubscriptionRepo
	eventRepo EventRepo
}

func NewHandler(s SubscriptionRepo, e EventRepo) *Handler {
	return &Handler{subsRepo: s, eventRepo: e}
}

type StatsResponse struct {
	Subscriptions int `json:"subscriptions"`
	Events        int `json:"events"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	sCount, err := h.subsRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count subscriptions", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count subscriptions", http.StatusInternalServerError)
		return
	}

	eCount, err := h.eventRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count events", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count events", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Subscriptions: sCount,
		Events:        eCount,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go-user-service/internal/model"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	store pinger
}

func NewSystemHandler(store pinger) *SystemHandler {
	return &SystemHandler{store: store}
}

func (h *SystemHandler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Hello, World!"})
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		slog.Warn("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/josh-kwaku/starbridge/internal/domain"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type inboxCounter interface {
	CountByStatus(ctx context.Context, status domain.WebhookEventStatus) (int, error)
}

type HealthHandler struct {
	db      pinger
	inbox   inboxCounter
	version string
}

func NewHealthHandler(db pinger, inbox inboxCounter, version string) *HealthHandler {
	return &HealthHandler{db: db, inbox: inbox, version: version}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	httpStatus := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		slog.Warn("readiness check failed: database unreachable", "error", err)
		dbStatus = "down"
		httpStatus = http.StatusServiceUnavailable
	}

	overallStatus := "ok"
	if httpStatus != http.StatusOK {
		overallStatus = "down"
	}

	body := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": map[string]string{
			"database": dbStatus,
		},
	}

	// Pending completions are reported but never fail readiness.
	if dbStatus == "ok" {
		if n, err := h.inbox.CountByStatus(ctx, domain.WebhookEventStatusPending); err == nil {
			body["pending_completions"] = n
		} else {
			slog.Warn("readiness: counting pending completions failed", "error", err)
		}
	}

	RespondJSON(w, httpStatus, body)
}

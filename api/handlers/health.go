package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Modern-Method/Ethos/memory"
)

const buildVersion = "ethos/1"

// HealthHandler serves GET /health.
type HealthHandler struct {
	Service *memory.Service
	Logger  *zap.Logger
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Service.CheckHealth(r.Context())
	WriteSuccess(w, map[string]any{
		"status":     status.Status,
		"postgresql": status.Store,
		"pgvector":   status.Store,
		"socket":     "ok",
	})
}

// VersionHandler serves GET /version.
type VersionHandler struct{}

func (VersionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]any{"version": buildVersion})
}

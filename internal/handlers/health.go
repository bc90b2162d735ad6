package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/collabhub/internal/middleware"
	"github.com/nfrund/collabhub/internal/presence"
)

// Pinger checks a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the store is reachable.
type HealthHandler struct {
	store     Pinger
	storeName string
	sessions  *presence.SessionRegistry
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(store Pinger, storeName string, sessions *presence.SessionRegistry) *HealthHandler {
	return &HealthHandler{store: store, storeName: storeName, sessions: sessions}
}

// Get handles GET /health.
func (h *HealthHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Store: h.storeName, Sessions: h.sessions.Count()}
	if err := h.store.Ping(ctx); err != nil {
		middleware.FromContext(ctx).Error("Health check failed", "store", h.storeName, "error", err)
		resp.Status = "unavailable"
		resp.Error = "store unreachable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ConnectionCounter reports open live connections.
type ConnectionCounter interface {
	Count() int
}

type HealthHandler struct {
	connections   ConnectionCounter
	documentStore string
	startedAt     time.Time
}

func NewHealthHandler(connections ConnectionCounter, documentStore string) *HealthHandler {
	return &HealthHandler{
		connections:   connections,
		documentStore: documentStore,
		startedAt:     time.Now(),
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"time":           time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"document_store": h.documentStore,
		"connections":    h.connections.Count(),
	})
}

package handlers

import (
	"context"
	"time"

	"github.com/maruel/calnotes/internal/server/dto"
)

// ServiceName is reported by /health.
const ServiceName = "Calendar Notebook"

// HealthHandler handles health check requests.
type HealthHandler struct {
	version string
	now     func() time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version: version,
		now:     time.Now,
	}
}

// Health handles health check requests.
func (h *HealthHandler) Health(_ context.Context, _ *dto.HealthRequest) (*dto.HealthResponse, error) {
	return &dto.HealthResponse{
		Status:    "OK",
		Timestamp: h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Service:   ServiceName,
		Version:   h.version,
	}, nil
}

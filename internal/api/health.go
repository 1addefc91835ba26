package api

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker is implemented by both stores.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	db        HealthChecker
	tr        Transcriber
	version   string
	startTime time.Time
}

func NewHealthHandler(db HealthChecker, tr Transcriber, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		tr:        tr,
		version:   version,
		startTime: startTime,
	}
}

// ServeHTTP reports unhealthy (503) when the store is down and degraded when
// dictation cannot be transcribed.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.tr != nil && h.tr.Configured() {
		checks["transcription"] = h.tr.ProviderName()
	} else {
		checks["transcription"] = "not_configured"
		if status == "healthy" {
			status = "degraded"
		}
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}

package http

import (
	"context"
	"net/http"
	"time"
)

type healthView struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(healthView{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the store within a short deadline
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	view := healthView{
		Status:    "ready",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    map[string]string{},
	}
	status := http.StatusOK

	if s.deps.Ready == nil {
		view.Checks["store"] = "not_configured"
	} else if err := s.deps.Ready(ctx); err != nil {
		view.Checks["store"] = "failed: " + err.Error()
		view.Status = "not_ready"
		status = http.StatusServiceUnavailable
	} else {
		view.Checks["store"] = "ok"
	}

	NewJSONResponse().Status(status).Header("Cache-Control", "no-store").Data(view).Write(w)
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the probes run by /health and /ready.
const healthCheckTimeout = 5 * time.Second

// Overall and per-component health states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ComponentHealth is the result of one Check.
type ComponentHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components []ComponentHealth `json:"components"`
	LastPoll   *time.Time        `json:"last_poll,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{id}", s.handleGetDevice)
		})
		r.Get("/governance", s.handleGovernance)
		r.Get("/system", s.handleSystem)
	})

	return r
}

// runChecks probes every component and folds the results into an overall
// status.
func (s *Server) runChecks(ctx context.Context) (string, []ComponentHealth) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	overall := StatusHealthy
	components := make([]ComponentHealth, 0, len(s.checks))
	for _, c := range s.checks {
		ch := ComponentHealth{Name: c.Name, Status: StatusHealthy}
		if err := c.Checker.HealthCheck(ctx); err != nil {
			ch.Message = err.Error()
			if c.Critical {
				ch.Status = StatusUnhealthy
				overall = StatusUnhealthy
			} else {
				ch.Status = StatusDegraded
				if overall == StatusHealthy {
					overall = StatusDegraded
				}
			}
		}
		components = append(components, ch)
	}
	return overall, components
}

// handleHealth reports the health of every component.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	overall, components := s.runChecks(r.Context())

	resp := HealthResponse{
		Status:     overall,
		Version:    s.version,
		Components: components,
		Timestamp:  time.Now().UTC(),
	}
	if last := s.bridge.LastPoll(); !last.IsZero() {
		resp.LastPoll = &last
	}

	status := http.StatusOK
	if overall == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleReady reports whether the bridge is serving: at least one poll cycle
// has completed and no critical component is down.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.bridge.LastPoll().IsZero() {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no poll cycle completed yet")
		return
	}
	if overall, _ := s.runChecks(r.Context()); overall == StatusUnhealthy {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "critical component unhealthy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// handleLive reports that the process is running.
func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "alive"})
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Version is reported by the health endpoint
var Version = "dev"

// HealthResponse is the liveness answer. Targets and Running count the
// managed servers; the host is healthy even when none of them run.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    int64  `json:"uptime"`
	Version   string `json:"version"`
	Targets   int    `json:"targets"`
	Running   int    `json:"running"`
}

// ReadinessResponse has one check per target, true when it runs
type ReadinessResponse struct {
	Status    string          `json:"status"`
	Ready     bool            `json:"ready"`
	Timestamp string          `json:"timestamp"`
	Checks    map[string]bool `json:"checks"`
}

// TargetStatus reports the running state of managed targets
type TargetStatus interface {
	Names() []string
	IsRunning(name string) bool
}

type HealthHandler struct {
	startTime time.Time
	targets   TargetStatus
}

func NewHealthHandler(targets TargetStatus) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		targets:   targets,
	}
}

// HealthCheck answers as long as the host process serves requests
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := h.checks()
	running := 0
	for _, ok := range checks {
		if ok {
			running++
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: now(),
		Uptime:    int64(time.Since(h.startTime).Seconds()),
		Version:   Version,
		Targets:   len(checks),
		Running:   running,
	})
}

// ReadinessCheck is ready when every managed target is running
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	checks := h.checks()
	ready := true
	for _, ok := range checks {
		ready = ready && ok
	}

	response := ReadinessResponse{Status: "ready", Ready: ready, Timestamp: now(), Checks: checks}
	code := http.StatusOK
	if !ready {
		response.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, response)
}

func (h *HealthHandler) checks() map[string]bool {
	names := h.targets.Names()
	checks := make(map[string]bool, len(names))
	for _, name := range names {
		checks[name] = h.targets.IsRunning(name)
	}
	return checks
}

func now() string {
	return time.Now().Truncate(time.Second).Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write health response", slog.String("error", err.Error()))
	}
}

package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Probe проверяет доступность одного компонента.
type Probe func() error

// Handler агрегирует probes компонентов в единый health-эндпоинт.
type Handler struct {
	mu      sync.RWMutex
	probes  map[string]Probe
	version string
	started time.Time
}

// NewHandler создаёт health handler.
func NewHandler(version string) *Handler {
	return &Handler{
		probes:  make(map[string]Probe),
		version: version,
		started: time.Now(),
	}
}

// Register добавляет проверку компонента.
func (h *Handler) Register(name string, probe Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = probe
}

type componentReport struct {
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type report struct {
	Status        string                     `json:"status"`
	Version       string                     `json:"version,omitempty"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Components    map[string]componentReport `json:"components,omitempty"`
}

// ServeHTTP прогоняет все probes и возвращает 503, если хоть одна упала.
func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	resp := report{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Components:    make(map[string]componentReport),
	}

	for name, probe := range h.snapshot() {
		start := time.Now()
		err := probe()
		comp := componentReport{Status: "healthy", DurationMs: time.Since(start).Milliseconds()}
		if err != nil {
			comp.Status = "unhealthy"
			comp.Error = err.Error()
			resp.Status = "unhealthy"
		}
		resp.Components[name] = comp
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Readiness возвращает 200, только когда все probes проходят.
func (h *Handler) Readiness(w http.ResponseWriter, _ *http.Request) {
	for _, probe := range h.snapshot() {
		if err := probe(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Liveness — liveness probe, всегда отвечает 200.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) snapshot() map[string]Probe {
	h.mu.RLock()
	defer h.mu.RUnlock()
	probes := make(map[string]Probe, len(h.probes))
	for name, probe := range h.probes {
		probes[name] = probe
	}
	return probes
}

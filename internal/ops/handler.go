package ops

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/quotegate/guardian/internal/circuitbreaker"
)

// Handler serves the diagnostics surface: service health, breaker
// states and administrative breaker resets.
type Handler struct {
	logger   *slog.Logger
	breakers *circuitbreaker.Registry
}

func NewHandler(logger *slog.Logger, breakers *circuitbreaker.Registry) *Handler {
	return &Handler{
		logger:   logger,
		breakers: breakers,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// Breakers reports every registered breaker's current state. Reading
// the states applies each breaker's lazy cooldown check, so an expired
// OPEN shows up as HALF-OPEN here.
func (h *Handler) Breakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.breakers.AllStates())
}

// ResetBreakers forces breakers back to CLOSED. With ?service= it
// resets one breaker and 404s on an unknown name; without, it resets
// them all.
func (h *Handler) ResetBreakers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	service := r.URL.Query().Get("service")
	if service == "" {
		h.breakers.Reset()
		h.logger.Info("All circuit breakers reset")
		writeJSON(w, map[string]string{"status": "reset"})
		return
	}

	cb, exists := h.breakers.Lookup(service)
	if !exists {
		http.Error(w, "unknown service", http.StatusNotFound)
		return
	}

	cb.Reset()
	h.logger.Info("Circuit breaker reset", slog.String("upstream", service))
	writeJSON(w, map[string]string{
		"status":  "reset",
		"service": service,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

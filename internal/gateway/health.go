package gateway

import (
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status        string `json:"status"` // "ok" or "degraded"
	Conversations int    `json:"conversations"`
	Subscribers   int    `json:"subscribers"`
	Breaker       string `json:"breaker,omitempty"`
}

// breakerStater is implemented by memory.BreakerKV.
type breakerStater interface {
	State() string
}

// handleHealth returns 200 while persistence is reachable and 503 once the
// KV circuit breaker has opened.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if g.manager != nil {
			resp.Conversations = len(g.manager.Resident())
		} else {
			resp.Status = "degraded"
		}
		if g.events != nil {
			resp.Subscribers = g.events.Len()
		}
		if g.breaker != nil {
			resp.Breaker = g.breaker.State()
			if resp.Breaker == "open" {
				resp.Status = "degraded"
			}
		}

		status := http.StatusOK
		if resp.Status == "degraded" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

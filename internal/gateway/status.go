package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/memory"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime        time.Duration   `json:"uptime_seconds"`
	Conversations int             `json:"conversations"`
	Subscribers   int             `json:"subscribers"`
	Settings      memory.Settings `json:"settings"`
	Modules       []string        `json:"modules"`
	Services      []string        `json:"services"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:      time.Since(g.startedAt).Truncate(time.Second) / time.Second,
			Subscribers: g.events.Len(),
			Services:    g.appCtx.ServiceNames(),
		}
		for _, m := range core.GetModules() {
			resp.Modules = append(resp.Modules, string(m.ID))
		}
		if g.manager != nil {
			resp.Conversations = len(g.manager.Resident())
			resp.Settings = g.manager.Settings()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

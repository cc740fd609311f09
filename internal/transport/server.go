package transport

import (
	"encoding/json"
	"net/http"

	"github.com/roach88/tether/internal/engine"
)

// Routes.
const (
	PathSession = "/ws"
	PathHealth  = "/healthz"
)

// StatsSource reports engine counters.
type StatsSource interface {
	Stats() engine.Stats
}

// Health is the /healthz response body.
type Health struct {
	Status  string       `json:"status"`
	Engine  engine.Stats `json:"engine"`
	Clients int          `json:"clients"`
	Dropped int64        `json:"droppedFrames"`
}

// NewMux routes the session endpoint to hub and serves health from stats.
func NewMux(hub *Hub, stats StatsSource) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(PathSession, hub)
	mux.HandleFunc("GET "+PathHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Health{
			Status:  "ok",
			Engine:  stats.Stats(),
			Clients: hub.Len(),
			Dropped: hub.Dropped(),
		})
	})
	return mux
}

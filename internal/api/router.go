package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/argosaqua/argos/internal/storage"
)

// Deps carries everything the handlers need. MachineID identifies this
// device and is stamped onto every inference and count the server creates.
type Deps struct {
	Store     *storage.Store
	APIKey    string
	MachineID string

	// Rate limiting is disabled when RateMax is zero (tests do this).
	RateWindow time.Duration
	RateMax    int

	// Draining flips readiness to 503 during shutdown. Optional.
	Draining *atomic.Bool
}

// NewHandler assembles the full route tree: liveness endpoints without auth,
// everything under /v1 behind the API key.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger)
	r.Use(SecurityHeaders)
	r.Use(WithMachineID(deps.MachineID))
	if deps.RateMax > 0 {
		r.Use(NewRateLimiter(deps.RateWindow, deps.RateMax).Handler)
	}

	r.Get("/health", handleHealth)
	r.Get("/ready", handleReady(deps.Draining))

	r.Route("/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(deps.APIKey))

		r.Post("/inference/start", handleStartInference(deps))
		r.Post("/inference/end", handleEndInference(deps))
		r.Get("/inference", handleListInferences(deps))
		r.Get("/inference/latest", handleLatestInference(deps))
		r.Get("/inference/{id}", handleGetInference(deps))
		r.Get("/inference/{id}/results", handleInferenceResults(deps))

		r.Post("/counts", handleCreateCount(deps))
		r.Get("/counts", handleListCounts(deps))

		r.Post("/data-records", handleCreateDataRecord(deps))
		r.Get("/data-records", handleListDataRecords(deps))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		problem(w, http.StatusNotFound, "Not Found", "Resource not found")
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(draining *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if draining != nil && draining.Load() {
			problem(w, http.StatusServiceUnavailable, "Service Unavailable", "Shutting down")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

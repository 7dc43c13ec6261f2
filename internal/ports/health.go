package ports

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status           string `json:"status"`
	SynthesisEnabled bool   `json:"synthesis_enabled"`
}

// MakeHealthHandler reports liveness. The service stays up without a working
// synthesizer, it just degrades to serving cached audio only.
func MakeHealthHandler(synthesisEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := json.Marshal(healthResponse{
			Status:           "ok",
			SynthesisEnabled: synthesisEnabled,
		})
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// Package handlers implements the debug/operator-facing HTTP surface the
// server exposes alongside the native user store: health, metrics, and a
// websocket feed of change events.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vitaliisemenov/native-user-store/internal/userstore"
)

// HealthResponse is the /healthz response body.
type HealthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

// HealthHandler reports the store's current lifecycle state. It always
// returns 200 with the state in the body — readiness is the caller's to
// interpret, since STARTING/STOPPING are transient and not failures.
func HealthHandler(store userstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok", State: store.State().String()})
	}
}

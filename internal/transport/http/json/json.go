// Package json holds the shared JSON response helper for the HTTP layer.
package json

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		// best-effort fallback; the status is already committed
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

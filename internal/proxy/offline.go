package proxy

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Synthesized response text for requests the backend never saw. The app
// shell keys off these exact strings.
const (
	offlineStoredMessage = "Request stored for sync when online"
	offlineReadMessage   = "Unable to fetch data while offline"
)

// offlineAccepted is the 202 body for a write captured into the queue.
type offlineAccepted struct {
	Offline   bool   `json:"offline"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// offlineError is the 503 body for anything that cannot be queued.
type offlineError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any, log *slog.Logger) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error("failed to encode response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Debug("response write interrupted", "error", err)
	}
}

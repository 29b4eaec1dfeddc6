package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/hperssn/promille/internal/engine"
)

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// respondEngineError maps engine sentinels onto status codes.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNoActiveSession):
		respondError(w, engine.ErrNoActiveSession.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrEventNotFound), errors.Is(err, engine.ErrSessionNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	default:
		log.Printf("Unexpected engine error: %v", err)
		respondError(w, "internal error", http.StatusInternalServerError)
	}
}

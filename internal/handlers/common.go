package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/idcard/backend/internal/models"
)

const (
	storeTimeout = 10 * time.Second
	maxJSONBody  = 1 << 20
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func contextWithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, storeTimeout)
}

// decodeJSON decodes a size-limited request body into dst and writes the
// 400 response itself when it cannot.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, models.NewErrorResponse("Request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return false
	}
	return true
}

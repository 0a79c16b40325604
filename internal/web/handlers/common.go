package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/attendance-kiosk/internal/attendance"
	"github.com/kozaktomas/attendance-kiosk/internal/engine"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// errorResponse carries the error kind so the UI can pick a message.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// respondEngineError maps controller and service errors to HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	respondJSON(w, statusForError(err), errorResponse{Error: err.Error(), Kind: engine.ErrorKind(err)})
}

func statusForError(err error) int {
	var apiErr *attendance.APIError
	switch {
	case errors.Is(err, engine.ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrSessionNotJoinable):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotJoined),
		errors.Is(err, engine.ErrNoPending),
		errors.Is(err, engine.ErrConfirmationPending),
		errors.Is(err, engine.ErrPeriodicActive),
		errors.Is(err, engine.ErrLoopBusy),
		errors.Is(err, engine.ErrCreateInProgress),
		errors.Is(err, engine.ErrStaleResult):
		return http.StatusConflict
	case errors.Is(err, engine.ErrUnsupportedAction):
		return http.StatusMethodNotAllowed
	case errors.Is(err, engine.ErrCaptureUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrRecognitionFailed),
		errors.Is(err, engine.ErrRecordingFailed):
		return http.StatusBadGateway
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

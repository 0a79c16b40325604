package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
)

// LedgerHandler serves marks from the local ledger.
type LedgerHandler struct {
	ledger func() (database.LedgerReader, error)
}

// NewLedgerHandler creates a handler that resolves the ledger on every
// request, so it works whether or not a ledger backend is registered.
func NewLedgerHandler() *LedgerHandler {
	return &LedgerHandler{ledger: func() (database.LedgerReader, error) {
		return database.GetLedger()
	}}
}

// ListResponse is the ledger content for one session.
type ListResponse struct {
	SessionID string                `json:"session_id"`
	Count     int                   `json:"count"`
	Marks     []database.MarkRecord `json:"marks"`
}

// List returns every mark recorded locally for the session.
func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.ledger()
	if err != nil {
		if errors.Is(err, database.ErrNoLedger) {
			respondError(w, http.StatusNotFound, "local ledger is not configured")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sessionID := chi.URLParam(r, "id")
	marks, err := ledger.ListMarks(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list marks")
		return
	}
	if marks == nil {
		marks = []database.MarkRecord{}
	}
	respondJSON(w, http.StatusOK, ListResponse{SessionID: sessionID, Count: len(marks), Marks: marks})
}

package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/engine"
	"github.com/kozaktomas/attendance-kiosk/internal/records"
)

// CaptureHandler exposes the capture controller.
type CaptureHandler struct {
	controller *engine.Controller
	location   *time.Location
	keepAlive  time.Duration
}

// NewCaptureHandler creates a new capture handler. CSV in-times are
// written in loc.
func NewCaptureHandler(controller *engine.Controller, loc *time.Location) *CaptureHandler {
	if loc == nil {
		loc = time.Local
	}
	return &CaptureHandler{
		controller: controller,
		location:   loc,
		keepAlive:  constants.SSEKeepAliveInterval,
	}
}

// State returns the controller snapshot.
func (h *CaptureHandler) State(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.controller.Snapshot())
}

// Join joins the session named in the URL.
func (h *CaptureHandler) Join(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session id is required")
		return
	}

	if err := h.controller.JoinByID(r.Context(), sessionID); err != nil {
		log.Printf("join %s failed: %s", sanitizeForLog(sessionID), sanitizeForLog(err.Error()))
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.controller.Snapshot())
}

// Start begins periodic capture (continuous mode).
func (h *CaptureHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.StartCapture(r.Context()); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, h.controller.Snapshot())
}

// TriggerResponse is the outcome of one manual capture cycle.
type TriggerResponse struct {
	Event engine.RecognitionEvent `json:"event"`
	State engine.State            `json:"state"`
}

// Trigger runs one capture cycle and waits for its result.
func (h *CaptureHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	event, err := h.controller.TriggerCapture(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, TriggerResponse{Event: event, State: h.controller.Snapshot()})
}

// Confirm records the pending candidate.
func (h *CaptureHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Confirm(r.Context()); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.controller.Snapshot())
}

// Dismiss drops the pending candidate.
func (h *CaptureHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Dismiss(); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.controller.Snapshot())
}

// Stop ends capture. Recording failures on stop still return the summary.
func (h *CaptureHandler) Stop(w http.ResponseWriter, r *http.Request) {
	summary, err := h.controller.Stop(r.Context())
	if err != nil {
		if summary.Session.ID == "" {
			respondEngineError(w, err)
			return
		}
		respondJSON(w, statusForError(err), map[string]any{
			"error":   err.Error(),
			"kind":    engine.ErrorKind(err),
			"summary": summary,
		})
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Present returns the present set, optionally filtered by name. With
// format=csv the list is downloaded in the records CSV layout.
func (h *CaptureHandler) Present(w http.ResponseWriter, r *http.Request) {
	entries := records.FilterPresent(h.controller.Aggregator().Entries(), r.URL.Query().Get("name"))

	if r.URL.Query().Get("format") != "csv" {
		respondJSON(w, http.StatusOK, entries)
		return
	}

	session, _ := h.controller.PresentSession()
	filename := "present.csv"
	if session.ID != "" {
		filename = fmt.Sprintf("present_%s.csv", session.ID)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := records.WriteCSV(w, records.FromPresent(session, entries, h.location)); err != nil {
		log.Printf("present export failed: %v", err)
	}
}

// Events streams controller events over SSE.
func (h *CaptureHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, h.controller.Events(), h.controller.Snapshot(), h.keepAlive)
}

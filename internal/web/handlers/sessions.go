package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/engine"
)

// SessionsHandler serves the session browser.
type SessionsHandler struct {
	browser *engine.Browser
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(browser *engine.Browser) *SessionsHandler {
	return &SessionsHandler{browser: browser}
}

// SessionsResponse is the partitioned session list.
type SessionsResponse struct {
	Active      []SessionView `json:"active"`
	Expired     []SessionView `json:"expired"`
	RefreshedAt *time.Time    `json:"refreshed_at,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// SessionView is a session with its status recomputed for display.
type SessionView struct {
	engine.Session
	DurationMinutes int           `json:"duration"` // minutes, shadows the embedded duration
	EndTime         time.Time     `json:"end_time"`
	Computed        engine.Status `json:"computed_status"`
	Joinable        bool          `json:"joinable"`
}

func newSessionView(s engine.Session, now time.Time) SessionView {
	return SessionView{
		Session:         s,
		DurationMinutes: int(s.Duration / time.Minute),
		EndTime:         s.EndTime(),
		Computed:        s.StatusAt(now),
		Joinable:        s.Joinable(now),
	}
}

func (h *SessionsHandler) response() SessionsResponse {
	now := time.Now()
	active, expired := h.browser.Partition()

	resp := SessionsResponse{
		Active:  make([]SessionView, 0, len(active)),
		Expired: make([]SessionView, 0, len(expired)),
	}
	for _, s := range active {
		resp.Active = append(resp.Active, newSessionView(s, now))
	}
	for _, s := range expired {
		resp.Expired = append(resp.Expired, newSessionView(s, now))
	}
	if at := h.browser.RefreshedAt(); !at.IsZero() {
		resp.RefreshedAt = &at
	}
	if err := h.browser.LastError(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// List returns the cached session list split into active and expired.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.response())
}

// Refresh reloads the session list immediately.
func (h *SessionsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.browser.Refresh(r.Context()); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.response())
}

// CreateSessionRequest is the body of a session create request.
type CreateSessionRequest struct {
	Dept       string    `json:"dept"`
	Sem        string    `json:"sem"`
	Subject    string    `json:"subject"`
	CourseName string    `json:"course_name"`
	StartTime  time.Time `json:"start_time"`
	Duration   int       `json:"duration"` // minutes
}

// Create validates and creates a new session.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	s, err := h.browser.Create(r.Context(), engine.NewSession{
		Dept:            req.Dept,
		Sem:             req.Sem,
		Subject:         req.Subject,
		CourseName:      req.CourseName,
		StartTime:       req.StartTime,
		DurationMinutes: req.Duration,
	})
	if err != nil {
		log.Printf("create session failed: %s", sanitizeForLog(err.Error()))
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, newSessionView(s, time.Now()))
}

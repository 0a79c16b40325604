package handlers

import (
	"net/http"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Mode                   string `json:"mode"`
	Recorder               string `json:"recorder"`
	SessionPollSeconds     int    `json:"session_poll_seconds"`
	CaptureIntervalSeconds int    `json:"capture_interval_seconds"`
	RecordOnStop           bool   `json:"record_on_stop"`
	RecordEachMatch        bool   `json:"record_each_match"`
	Camera                 string `json:"camera"`
	LedgerAvailable        bool   `json:"ledger_available"`
}

// Get returns the kiosk configuration. Secrets are never included.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	camera := "none"
	switch {
	case h.config.Camera.ImageDir != "":
		camera = "dir"
	case h.config.Camera.SnapshotURL != "":
		camera = "snapshot"
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		Mode:                   h.config.Capture.Mode,
		Recorder:               h.config.Capture.Recorder,
		SessionPollSeconds:     int(h.config.Capture.PollInterval.Seconds()),
		CaptureIntervalSeconds: int(h.config.Capture.CaptureInterval.Seconds()),
		RecordOnStop:           h.config.Capture.RecordOnStop,
		RecordEachMatch:        h.config.Capture.RecordEachMatch,
		Camera:                 camera,
		LedgerAvailable:        database.IsLedgerAvailable(),
	})
}

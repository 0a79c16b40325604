package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/attendance"
	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/database/postgres"
	"github.com/kozaktomas/attendance-kiosk/internal/engine"
)

// Recorder backends.
const (
	recorderAPI      = "api"
	recorderPostgres = "postgres"
	recorderBoth     = "both"
)

// newAttendanceClient connects the service client with the configured
// timeouts and time zone.
func newAttendanceClient(cfg *config.Config) (*attendance.Client, *time.Location, error) {
	loc, err := cfg.API.Location()
	if err != nil {
		return nil, nil, err
	}
	client, err := attendance.NewClientWithCapture(cfg.API.URL, cfg.API.Token, captureDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create attendance client: %w", err)
	}
	client.SetTimeouts(attendance.Timeouts{
		Read:      cfg.Timeouts.Read,
		Write:     cfg.Timeouts.Write,
		Recognize: cfg.Timeouts.Recognize,
		Export:    cfg.Timeouts.Export,
	})
	client.SetLocation(loc)
	client.SetUserAgent("attendance-kiosk/" + Version)
	return client, loc, nil
}

// newCaptureSource picks the frame directory when set, otherwise the snapshot URL.
func newCaptureSource(cfg *config.Config) (capture.Source, error) {
	switch {
	case cfg.Camera.ImageDir != "":
		return capture.NewDirSource(cfg.Camera.ImageDir, cfg.Camera.MaxSize), nil
	case cfg.Camera.SnapshotURL != "":
		return capture.NewSnapshotSource(cfg.Camera.SnapshotURL, cfg.Camera.MaxSize), nil
	default:
		return nil, errors.New("no camera configured (set CAMERA_SNAPSHOT_URL or CAMERA_IMAGE_DIR)")
	}
}

// openLedger connects the local ledger database. The returned close
// function is safe to call when no ledger was opened.
func openLedger(ctx context.Context, cfg *config.Config) (database.Ledger, func(), error) {
	if cfg.Database.URL == "" {
		return nil, func() {}, database.ErrNoLedger
	}
	fmt.Printf("Connecting to PostgreSQL ledger...\n")
	pool, err := postgres.Initialize(ctx, &cfg.Database)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	ledger, err := database.GetLedger()
	if err != nil {
		pool.Close()
		return nil, func() {}, err
	}
	return ledger, func() { pool.Close() }, nil
}

// newRecorder builds the attendance recorder named by cfg.Capture.Recorder.
func newRecorder(ctx context.Context, cfg *config.Config, client *attendance.Client) (engine.Recorder, func(), error) {
	switch strings.ToLower(cfg.Capture.Recorder) {
	case "", recorderAPI:
		return client, func() {}, nil
	case recorderPostgres:
		ledger, closeFn, err := openLedger(ctx, cfg)
		if err != nil {
			return nil, closeFn, err
		}
		return ledger, closeFn, nil
	case recorderBoth:
		ledger, closeFn, err := openLedger(ctx, cfg)
		if err != nil {
			return nil, closeFn, err
		}
		return &database.MirrorRecorder{Primary: client, Ledger: ledger, Logger: slog.Default()}, closeFn, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown recorder %q (expected %s, %s or %s)",
			cfg.Capture.Recorder, recorderAPI, recorderPostgres, recorderBoth)
	}
}

// newController wires the capture engine with a session browser attached.
func newController(cfg *config.Config, mode engine.Mode, source capture.Source,
	client *attendance.Client, recorder engine.Recorder,
) *engine.Controller {
	logger := slog.Default()
	controller := engine.NewController(source, client, recorder, engine.Options{
		Mode:             mode,
		CaptureInterval:  cfg.Capture.CaptureInterval,
		RecognizeTimeout: cfg.Timeouts.Recognize,
		RecordTimeout:    cfg.Timeouts.Write,
		RecordOnStop:     cfg.Capture.RecordOnStop,
		RecordEachMatch:  cfg.Capture.RecordEachMatch,
		PauseBrowsing:    true,
		Logger:           logger,
	})
	controller.AttachBrowser(engine.NewBrowser(client, engine.BrowserOptions{
		Interval:     cfg.Capture.PollInterval,
		ReadTimeout:  cfg.Timeouts.Read,
		WriteTimeout: cfg.Timeouts.Write,
		Logger:       logger,
	}))
	return controller
}

// formatDuration renders a session length in minutes the way operators enter it.
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%d min", int(d/time.Minute))
}

package database

import (
	"context"
	"log/slog"

	"github.com/kozaktomas/attendance-kiosk/internal/engine"
)

// MirrorRecorder submits marks to a primary recorder and copies the ones it
// accepts into a ledger. Only the primary's result decides success; ledger
// failures are logged.
type MirrorRecorder struct {
	Primary engine.Recorder
	Ledger  engine.Recorder
	Logger  *slog.Logger
}

// MarkAttendance implements engine.Recorder.
func (m *MirrorRecorder) MarkAttendance(ctx context.Context, sessionID string, mark engine.Mark) error {
	if err := m.Primary.MarkAttendance(ctx, sessionID, mark); err != nil {
		return err
	}
	if m.Ledger == nil {
		return nil
	}
	if err := m.Ledger.MarkAttendance(ctx, sessionID, mark); err != nil {
		logger := m.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("ledger copy failed", "session_id", sessionID, "student_id", mark.StudentID, "error", err)
	}
	return nil
}

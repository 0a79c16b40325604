// Package database holds the local attendance ledger: a durable copy of
// every mark the kiosk submits, kept alongside (or instead of) the remote
// service.
package database

import (
	"context"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/engine"
)

// MarkRecord is one student's attendance in one session.
type MarkRecord struct {
	SessionID   string    `json:"session_id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Confidence  float64   `json:"confidence"` // score of the most recent mark
	FirstMarked time.Time `json:"first_marked"`
	LastMarked  time.Time `json:"last_marked"`
	Marks       int       `json:"marks"` // how many times the student was submitted
}

// LedgerReader reads recorded marks.
type LedgerReader interface {
	// ListMarks returns the marks of a session ordered by first mark time.
	ListMarks(ctx context.Context, sessionID string) ([]MarkRecord, error)
	// CountMarks returns the number of distinct students marked in a session.
	CountMarks(ctx context.Context, sessionID string) (int, error)
}

// Ledger records marks and reads them back. Marking the same student twice
// in a session updates the existing record.
type Ledger interface {
	engine.Recorder
	LedgerReader
}

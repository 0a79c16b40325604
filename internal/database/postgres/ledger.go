package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/engine"
)

// Ledger implements database.Ledger on a Pool.
type Ledger struct {
	pool *Pool
	now  func() time.Time
}

// NewLedger creates a ledger backed by pool.
func NewLedger(pool *Pool) *Ledger {
	return &Ledger{pool: pool, now: time.Now}
}

// MarkAttendance upserts the student's mark for the session. A repeated
// mark keeps the first mark time and refreshes the confidence.
func (l *Ledger) MarkAttendance(ctx context.Context, sessionID string, mark engine.Mark) error {
	if sessionID == "" || mark.StudentID == "" {
		return fmt.Errorf("session and student ID are required")
	}

	now := l.now().UTC()
	_, err := l.pool.db.ExecContext(ctx, `
		INSERT INTO attendance_marks (session_id, student_id, student_name, confidence, first_marked_at, last_marked_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (session_id, student_id) DO UPDATE SET
			student_name   = EXCLUDED.student_name,
			confidence     = EXCLUDED.confidence,
			last_marked_at = EXCLUDED.last_marked_at,
			marks          = attendance_marks.marks + 1
	`, sessionID, mark.StudentID, mark.StudentName, mark.Confidence, now)
	if err != nil {
		return fmt.Errorf("insert mark: %w", err)
	}
	return nil
}

// ListMarks returns the marks of a session ordered by first mark time.
func (l *Ledger) ListMarks(ctx context.Context, sessionID string) ([]database.MarkRecord, error) {
	rows, err := l.pool.db.QueryContext(ctx, `
		SELECT session_id, student_id, student_name, confidence, first_marked_at, last_marked_at, marks
		FROM attendance_marks
		WHERE session_id = $1
		ORDER BY first_marked_at, student_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query marks: %w", err)
	}
	defer rows.Close()

	var out []database.MarkRecord
	for rows.Next() {
		var r database.MarkRecord
		if err := rows.Scan(&r.SessionID, &r.StudentID, &r.StudentName, &r.Confidence, &r.FirstMarked, &r.LastMarked, &r.Marks); err != nil {
			return nil, fmt.Errorf("scan mark: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate marks: %w", err)
	}
	return out, nil
}

// CountMarks returns the number of distinct students marked in a session.
func (l *Ledger) CountMarks(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := l.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attendance_marks WHERE session_id = $1", sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count marks: %w", err)
	}
	return n, nil
}

var _ database.Ledger = (*Ledger)(nil)

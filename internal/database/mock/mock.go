// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/engine"
)

// MockLedger is an in-memory implementation of database.Ledger
type MockLedger struct {
	mu    sync.RWMutex
	marks map[string]map[string]*database.MarkRecord // session -> student -> record
	calls int
	now   func() time.Time

	// Error injection
	MarkError  error
	ListError  error
	CountError error
}

// NewMockLedger creates a new mock ledger
func NewMockLedger() *MockLedger {
	return &MockLedger{
		marks: make(map[string]map[string]*database.MarkRecord),
		now:   time.Now,
	}
}

// SetClock replaces the time source used for mark timestamps
func (m *MockLedger) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// MarkAttendance records or updates a mark
func (m *MockLedger) MarkAttendance(ctx context.Context, sessionID string, mark engine.Mark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.MarkError != nil {
		return m.MarkError
	}

	session := m.marks[sessionID]
	if session == nil {
		session = make(map[string]*database.MarkRecord)
		m.marks[sessionID] = session
	}

	now := m.now()
	if r, ok := session[mark.StudentID]; ok {
		r.StudentName = mark.StudentName
		r.Confidence = mark.Confidence
		r.LastMarked = now
		r.Marks++
		return nil
	}
	session[mark.StudentID] = &database.MarkRecord{
		SessionID:   sessionID,
		StudentID:   mark.StudentID,
		StudentName: mark.StudentName,
		Confidence:  mark.Confidence,
		FirstMarked: now,
		LastMarked:  now,
		Marks:       1,
	}
	return nil
}

// ListMarks returns the marks of a session ordered by first mark time
func (m *MockLedger) ListMarks(ctx context.Context, sessionID string) ([]database.MarkRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]database.MarkRecord, 0, len(m.marks[sessionID]))
	for _, r := range m.marks[sessionID] {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b database.MarkRecord) int {
		if c := a.FirstMarked.Compare(b.FirstMarked); c != 0 {
			return c
		}
		return strings.Compare(a.StudentID, b.StudentID)
	})
	return out, nil
}

// CountMarks returns the number of students marked in a session
func (m *MockLedger) CountMarks(ctx context.Context, sessionID string) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.marks[sessionID]), nil
}

// Calls returns how many times MarkAttendance was called
func (m *MockLedger) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

var _ database.Ledger = (*MockLedger)(nil)

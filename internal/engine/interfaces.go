package engine

import (
	"context"
)

// SessionDirectory lists and creates attendance sessions.
type SessionDirectory interface {
	ListSessions(ctx context.Context) ([]Session, error)
	CreateSession(ctx context.Context, req NewSession) (Session, error)
}

// Recognizer submits a single image to the remote recognition service.
// sessionID may be empty.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, sessionID string) ([]FaceObservation, error)
}

// Recorder persists an attendance mark for a (session, student) pair.
// Duplicates and stale sessions are rejected remotely and returned as errors.
type Recorder interface {
	MarkAttendance(ctx context.Context, sessionID string, mark Mark) error
}

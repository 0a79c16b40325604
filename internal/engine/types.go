// Package engine implements the real-time attendance capture engine: the
// capture-recognize loop, the presence aggregator and the session lifecycle
// controller that ties them to the remote attendance service.
package engine

import (
	"time"
)

// Match identifies the student a face was recognized as.
type Match struct {
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	Score       float64 `json:"score"` // in [0, 1]
}

// FaceObservation is one detected face. Match is nil for unknown faces.
type FaceObservation struct {
	Box   []float64 `json:"bbox"` // [x1, y1, x2, y2] in frame pixels
	Match *Match    `json:"match,omitempty"`
}

// RecognitionEvent is the result of submitting one frame to the recognizer.
type RecognitionEvent struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id,omitempty"`
	CapturedAt  time.Time         `json:"captured_at"`
	ResolvedAt  time.Time         `json:"resolved_at"`
	Faces       []FaceObservation `json:"faces"`
	FrameWidth  int               `json:"frame_width"`
	FrameHeight int               `json:"frame_height"`
	FrameScale  float64           `json:"frame_scale"`
}

// NoFaceDetected reports whether the recognizer found no faces. This is a
// normal outcome, not an error.
func (e RecognitionEvent) NoFaceDetected() bool {
	return len(e.Faces) == 0
}

// Primary returns the first observed face.
func (e RecognitionEvent) Primary() (FaceObservation, bool) {
	if len(e.Faces) == 0 {
		return FaceObservation{}, false
	}
	return e.Faces[0], true
}

// Matched returns the observations carrying a positive match.
func (e RecognitionEvent) Matched() []FaceObservation {
	var out []FaceObservation
	for _, f := range e.Faces {
		if f.Match != nil && f.Match.StudentID != "" {
			out = append(out, f)
		}
	}
	return out
}

// PresentEntry records that a student was recognized during the current session.
// Confidence is the score of the most recent recognition, not the best one.
type PresentEntry struct {
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Confidence  float64   `json:"confidence"`
}

// PendingConfirmation is the candidate awaiting operator confirmation in manual mode.
type PendingConfirmation struct {
	EventID     string    `json:"event_id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Confidence  float64   `json:"confidence"`
	Box         []float64 `json:"bbox,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Mark is the payload sent to the attendance recorder.
type Mark struct {
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	Confidence  float64 `json:"confidence"`
}

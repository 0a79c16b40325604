package engine

import (
	"errors"
)

// Error taxonomy. Capture and recognition failures are recoverable and
// retried on the next cycle; recording failures are always surfaced.
var (
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrRecognitionFailed  = errors.New("recognition failed")
	ErrSessionNotJoinable = errors.New("session not joinable")
	ErrRecordingFailed    = errors.New("recording failed")
)

// Controller usage errors.
var (
	ErrLoopBusy            = errors.New("recognition already in flight")
	ErrNotJoined           = errors.New("no session joined")
	ErrNoPending           = errors.New("no pending confirmation")
	ErrConfirmationPending = errors.New("a candidate is awaiting confirmation")
	ErrPeriodicActive      = errors.New("periodic capture is running")
	ErrSchedulerRunning    = errors.New("scheduler already running")
	ErrCreateInProgress    = errors.New("session creation already in progress")
	ErrStaleResult         = errors.New("result arrived after capture stopped")
	ErrUnsupportedAction   = errors.New("action not supported in this mode")
)

// Error kinds as shown to the UI.
const (
	KindCaptureUnavailable = "capture_unavailable"
	KindRecognitionFailed  = "recognition_failed"
	KindSessionNotJoinable = "session_not_joinable"
	KindRecordingFailed    = "recording_failed"
	KindOther              = "error"
)

// ErrorKind classifies err into one of the Kind constants. Returns "" for nil.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRecordingFailed):
		return KindRecordingFailed
	case errors.Is(err, ErrCaptureUnavailable):
		return KindCaptureUnavailable
	case errors.Is(err, ErrRecognitionFailed):
		return KindRecognitionFailed
	case errors.Is(err, ErrSessionNotJoinable):
		return KindSessionNotJoinable
	default:
		return KindOther
	}
}

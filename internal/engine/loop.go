package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/constants"
)

// Loop turns the current camera frame into a RecognitionEvent. At most one
// capture is in flight per Loop; overlapping calls fail fast with ErrLoopBusy
// instead of queueing.
type Loop struct {
	source     capture.Source
	recognizer Recognizer
	timeout    time.Duration
	now        func() time.Time
	logger     *slog.Logger

	busy atomic.Bool
}

// NewLoop creates a capture-recognize loop. A zero timeout uses the default
// recognition budget.
func NewLoop(source capture.Source, recognizer Recognizer, timeout time.Duration, logger *slog.Logger) *Loop {
	if timeout <= 0 {
		timeout = constants.DefaultRecognizeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		source:     source,
		recognizer: recognizer,
		timeout:    timeout,
		now:        time.Now,
		logger:     logger,
	}
}

// Busy reports whether a capture is currently in flight.
func (l *Loop) Busy() bool {
	return l.busy.Load()
}

// Capture takes one snapshot and submits it for recognition.
//
// If no frame is available the recognizer is not called and the error wraps
// ErrCaptureUnavailable. Service errors and timeouts wrap ErrRecognitionFailed.
// A frame without faces is returned as a normal event (see NoFaceDetected).
func (l *Loop) Capture(ctx context.Context, sessionID string) (RecognitionEvent, error) {
	if !l.busy.CompareAndSwap(false, true) {
		return RecognitionEvent{}, ErrLoopBusy
	}
	defer l.busy.Store(false)

	frame, err := l.source.Snapshot(ctx)
	if err != nil {
		l.logger.Debug("snapshot failed", "session_id", sessionID, "error", err)
		return RecognitionEvent{}, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}
	if len(frame.Data) == 0 {
		return RecognitionEvent{}, fmt.Errorf("%w: %w", ErrCaptureUnavailable, capture.ErrNoFrame)
	}

	capturedAt := l.now()

	rctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	faces, err := l.recognizer.Recognize(rctx, frame.Data, sessionID)
	if err != nil {
		l.logger.Warn("recognition failed", "session_id", sessionID, "error", err)
		return RecognitionEvent{}, fmt.Errorf("%w: %w", ErrRecognitionFailed, err)
	}

	scale := frame.Scale
	if scale <= 0 {
		scale = 1
	}

	event := RecognitionEvent{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		CapturedAt:  capturedAt,
		ResolvedAt:  l.now(),
		Faces:       faces,
		FrameWidth:  frame.Width,
		FrameHeight: frame.Height,
		FrameScale:  scale,
	}
	l.logger.Debug("recognition resolved", "session_id", sessionID, "event_id", event.ID, "faces", len(faces))
	return event, nil
}

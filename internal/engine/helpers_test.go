package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/capture"
)

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// testClock advances by step on every call so successive events are ordered.
type testClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newTestClock(step time.Duration) *testClock {
	return &testClock{now: testStart, step: step}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func frameSource() capture.Source {
	return capture.SourceFunc(func(ctx context.Context) (capture.Frame, error) {
		return capture.Frame{Data: []byte{0xFF, 0xD8, 0xFF}, Width: 640, Height: 480, Scale: 1}, nil
	})
}

func brokenSource() capture.Source {
	return capture.SourceFunc(func(ctx context.Context) (capture.Frame, error) {
		return capture.Frame{}, capture.ErrNoFrame
	})
}

type fakeRecognizer struct {
	mu      sync.Mutex
	calls   int
	results [][]FaceObservation // consumed in order; the last one repeats
	err     error
	block   chan struct{}
	started chan struct{}
	ctxErr  error // context error seen when a blocked call returned
}

func (f *fakeRecognizer) Recognize(ctx context.Context, image []byte, sessionID string) ([]FaceObservation, error) {
	f.mu.Lock()
	f.calls++
	idx := f.calls - 1
	block, started, err := f.block, f.started, f.err
	var faces []FaceObservation
	if len(f.results) > 0 {
		faces = f.results[min(idx, len(f.results)-1)]
	}
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
		f.mu.Lock()
		f.ctxErr = ctx.Err()
		f.mu.Unlock()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return faces, nil
}

func (f *fakeRecognizer) CtxErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctxErr
}

func (f *fakeRecognizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecorder struct {
	mu      sync.Mutex
	marks   []Mark
	err     error
	block   chan struct{}
	ctxErrs []error // context error of each call when it returned
}

func (f *fakeRecorder) MarkAttendance(ctx context.Context, sessionID string, mark Mark) error {
	f.mu.Lock()
	f.marks = append(f.marks, mark)
	block, err := f.block, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (f *fakeRecorder) CtxErrs() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.ctxErrs...)
}

func (f *fakeRecorder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.marks)
}

type fakeDirectory struct {
	mu       sync.Mutex
	sessions []Session
	err      error
	created  []NewSession
	block    chan struct{}
}

func (f *fakeDirectory) ListSessions(ctx context.Context) ([]Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]Session(nil), f.sessions...), nil
}

func (f *fakeDirectory) CreateSession(ctx context.Context, req NewSession) (Session, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	s := Session{
		ID:        "new-1",
		Dept:      req.Dept,
		Sem:       req.Sem,
		Subject:   req.Subject,
		StartTime: req.StartTime,
		Duration:  time.Duration(req.DurationMinutes) * time.Minute,
		Status:    StatusLive,
	}
	f.sessions = append(f.sessions, s)
	return s, nil
}

var errNetwork = errors.New("connection refused")

func match(id, name string, score float64) FaceObservation {
	return FaceObservation{
		Box:   []float64{100, 80, 220, 240},
		Match: &Match{StudentID: id, StudentName: name, Score: score},
	}
}

func unknownFace() FaceObservation {
	return FaceObservation{Box: []float64{10, 10, 50, 60}}
}

// liveSession is live at testStart: started 10 minutes ago, 30 minutes long.
func liveSession() Session {
	return Session{
		ID:        "S1",
		Dept:      "CSE",
		Sem:       "3",
		Subject:   "Data Structures",
		StartTime: testStart.Add(-10 * time.Minute),
		Duration:  30 * time.Minute,
		Status:    StatusLive,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/engine"
)

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d: %s", expected, recorder.Code, recorder.Body.String())
	}
}

func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	if ct := recorder.Header().Get("Content-Type"); ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response: %v (body: %s)", err, recorder.Body.String())
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// liveSession returns a session that is live for the next half hour.
func liveSession(id string) engine.Session {
	return engine.Session{
		ID:         id,
		Dept:       "CSE",
		Sem:        "3",
		Subject:    "CS201",
		CourseName: "Data Structures",
		StartTime:  time.Now().Add(-10 * time.Minute),
		Duration:   40 * time.Minute,
		Status:     engine.StatusLive,
	}
}

func expiredSession(id string) engine.Session {
	s := liveSession(id)
	s.StartTime = time.Now().Add(-3 * time.Hour)
	s.Status = engine.StatusExpired
	return s
}

type fakeDirectory struct {
	mu        sync.Mutex
	sessions  []engine.Session
	listErr   error
	createErr error
	created   []engine.NewSession
}

func (f *fakeDirectory) ListSessions(ctx context.Context) ([]engine.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]engine.Session(nil), f.sessions...), nil
}

func (f *fakeDirectory) CreateSession(ctx context.Context, req engine.NewSession) (engine.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return engine.Session{}, f.createErr
	}
	f.created = append(f.created, req)
	s := engine.Session{
		ID:         "new-1",
		Dept:       req.Dept,
		Sem:        req.Sem,
		Subject:    req.Subject,
		CourseName: req.CourseName,
		StartTime:  req.StartTime,
		Duration:   time.Duration(req.DurationMinutes) * time.Minute,
		Status:     engine.StatusLive,
	}
	f.sessions = append(f.sessions, s)
	return s, nil
}

type fakeRecognizer struct {
	mu    sync.Mutex
	faces []engine.FaceObservation
	err   error
}

func (f *fakeRecognizer) Recognize(ctx context.Context, image []byte, sessionID string) ([]engine.FaceObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faces, f.err
}

type fakeRecorder struct {
	mu    sync.Mutex
	marks []engine.Mark
	err   error
}

func (f *fakeRecorder) MarkAttendance(ctx context.Context, sessionID string, mark engine.Mark) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, mark)
	return f.err
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.marks)
}

func matchedFace(id, name string, score float64) engine.FaceObservation {
	return engine.FaceObservation{
		Box:   []float64{100, 80, 220, 240},
		Match: &engine.Match{StudentID: id, StudentName: name, Score: score},
	}
}

type testKiosk struct {
	dir        *fakeDirectory
	recognizer *fakeRecognizer
	recorder   *fakeRecorder
	browser    *engine.Browser
	controller *engine.Controller
}

// newTestKiosk wires a manual-mode controller and browser over fakes and
// loads the session list once.
func newTestKiosk(t *testing.T, sessions ...engine.Session) *testKiosk {
	t.Helper()
	k := &testKiosk{
		dir:        &fakeDirectory{sessions: sessions},
		recognizer: &fakeRecognizer{},
		recorder:   &fakeRecorder{},
	}
	source := capture.SourceFunc(func(ctx context.Context) (capture.Frame, error) {
		return capture.Frame{Data: []byte{0xFF, 0xD8, 0xFF}, Width: 640, Height: 480, Scale: 1}, nil
	})
	k.browser = engine.NewBrowser(k.dir, engine.BrowserOptions{Interval: time.Hour, Logger: discardLogger()})
	k.controller = engine.NewController(source, k.recognizer, k.recorder, engine.Options{
		Mode:            engine.ModeManual,
		CaptureInterval: time.Hour,
		Logger:          discardLogger(),
	})
	k.controller.AttachBrowser(k.browser)
	if err := k.browser.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh failed: %v", err)
	}
	return k
}

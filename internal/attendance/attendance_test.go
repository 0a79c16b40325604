package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/engine"
	"github.com/kozaktomas/attendance-kiosk/internal/records"
)

func loadTestData(t *testing.T, filename string) []byte {
	t.Helper()
	path := filepath.Join("testdata", filename)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load test data %s: %v", filename, err)
	}
	return data
}

// mockService records what the client sent to each endpoint.
type mockService struct {
	mu          sync.Mutex
	authHeaders []string
	created     map[string]any
	marks       []map[string]any
	markPath    string
	recognize   struct {
		sessionForm  string
		sessionQuery string
		fileName     string
		fileData     []byte
	}
	markResponse string
	exportQuery  string
}

func setupMockServer(t *testing.T) (*httptest.Server, *mockService) {
	t.Helper()

	sessionsData := loadTestData(t, "sessions.json")
	recognizeData := loadTestData(t, "recognize.json")
	previewData := loadTestData(t, "preview.json")
	exportData := loadTestData(t, "export.csv")

	svc := &mockService{markResponse: `{"marked": true, "appended": true}`}
	mux := http.NewServeMux()

	record := func(r *http.Request) {
		svc.mu.Lock()
		svc.authHeaders = append(svc.authHeaders, r.Header.Get("Authorization"))
		svc.mu.Unlock()
	}

	mux.HandleFunc("GET /api/v1/sessions/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Header().Set("Content-Type", "application/json")
		w.Write(sessionsData)
	})

	mux.HandleFunc("POST /api/v1/sessions/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		svc.mu.Lock()
		svc.created = body
		svc.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":          99,
			"dept":        body["dept"],
			"sem":         body["sem"],
			"subject":     body["subject"],
			"course_name": body["course_name"],
			"start_time":  body["start_time"],
			"duration":    body["duration"],
			"status":      "SCHEDULED",
		})
	})

	mux.HandleFunc("POST /api/v1/sessions/{id}/mark", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		svc.mu.Lock()
		svc.marks = append(svc.marks, body)
		svc.markPath = r.PathValue("id")
		resp := svc.markResponse
		svc.mu.Unlock()

		if r.PathValue("id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Session not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(resp))
	})

	mux.HandleFunc("POST /api/v1/recognize/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"detail":[{"loc":["body","file"],"msg":"field required"}]}`))
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)

		svc.mu.Lock()
		svc.recognize.sessionForm = r.FormValue("session_id")
		svc.recognize.sessionQuery = r.URL.Query().Get("session_id")
		svc.recognize.fileName = header.Filename
		svc.recognize.fileData = data
		svc.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Write(recognizeData)
	})

	mux.HandleFunc("GET /api/v1/attendance/preview", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.URL.Query().Get("range") != "week" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"unexpected range"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(previewData)
	})

	mux.HandleFunc("GET /api/v1/attendance/export", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		svc.mu.Lock()
		svc.exportQuery = r.URL.RawQuery
		svc.mu.Unlock()
		w.Header().Set("Content-Type", "text/csv")
		w.Write(exportData)
	})

	return httptest.NewServer(mux), svc
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(serverURL, "secret-token")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	c.SetLocation(time.UTC)
	return c
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantURL string
		wantErr bool
	}{
		{"plain", "http://127.0.0.1:8000", "http://127.0.0.1:8000/api/v1", false},
		{"trailing slash", "https://attendance.example.com/", "https://attendance.example.com/api/v1", false},
		{"empty", "", "", true},
		{"no scheme", "attendance.local:8000", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.url, "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewClient(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err == nil && c.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", c.URL, tt.wantURL)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	c, err := NewClient("http://localhost:8000", "")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		endpoint string
		want     string
	}{
		{"sessions/", "http://localhost:8000/api/v1/sessions/"},
		{"sessions/abc/mark", "http://localhost:8000/api/v1/sessions/abc/mark"},
		{"attendance/preview?range=week", "http://localhost:8000/api/v1/attendance/preview?range=week"},
	}

	for _, tt := range tests {
		if got := c.resolveURL(tt.endpoint); got != tt.want {
			t.Errorf("resolveURL(%q) = %q, want %q", tt.endpoint, got, tt.want)
		}
	}
}

func TestListSessions(t *testing.T) {
	server, svc := setupMockServer(t)
	defer server.Close()

	c := newTestClient(t, server.URL)
	sessions, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}

	// The entry with an unparseable start time is skipped.
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	s := sessions[0]
	if s.ID != "65f1c2a9e4b0a1b2c3d4e5f6" || s.Sem != "3" || s.Status != engine.StatusLive {
		t.Errorf("unexpected first session: %+v", s)
	}
	wantStart := time.Date(2026, 3, 2, 8, 50, 0, 0, time.UTC)
	if !s.StartTime.Equal(wantStart) {
		t.Errorf("StartTime = %v, want %v", s.StartTime, wantStart)
	}
	if s.Duration != 30*time.Minute {
		t.Errorf("Duration = %v, want 30m", s.Duration)
	}

	if sessions[1].ID != "17" || sessions[1].Duration != 45*time.Minute || sessions[1].Status != engine.StatusExpired {
		t.Errorf("unexpected second session: %+v", sessions[1])
	}

	if svc.authHeaders[0] != "Bearer secret-token" {
		t.Errorf("expected bearer token, got %q", svc.authHeaders[0])
	}
}

func TestCreateSession(t *testing.T) {
	server, svc := setupMockServer(t)
	defer server.Close()

	c := newTestClient(t, server.URL)
	req := engine.NewSession{
		Dept:            "CSE",
		Sem:             "3",
		Subject:         "Algorithms",
		CourseName:      "B.Tech",
		StartTime:       time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 50,
	}

	s, err := c.CreateSession(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if s.ID != "99" || s.Subject != "Algorithms" || s.Duration != 50*time.Minute {
		t.Errorf("unexpected session: %+v", s)
	}
	if svc.created["start_time"] != "2026-03-02T10:00:00" {
		t.Errorf("unexpected start_time sent: %v", svc.created["start_time"])
	}
	if svc.created["duration"] != float64(50) {
		t.Errorf("unexpected duration sent: %v", svc.created["duration"])
	}
}

func TestCreateSession_Invalid(t *testing.T) {
	server, svc := setupMockServer(t)
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.CreateSession(context.Background(), engine.NewSession{Dept: "CSE"})
	if !errors.Is(err, engine.ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if svc.created != nil {
		t.Error("expected no request for an invalid session")
	}
}

func TestRecognize(t *testing.T) {
	server, svc := setupMockServer(t)
	defer server.Close()

	c := newTestClient(t, server.URL)
	frame := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	faces, err := c.Recognize(context.Background(), frame, "S1")
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	if len(faces) != 3 {
		t.Fatalf("expected 3 faces, got %d", len(faces))
	}
	m := faces[0].Match
	if m == nil || m.StudentID != "42" || m.StudentName != "Asha Rao" || m.Score != 0.9132 {
		t.Errorf("unexpected first match: %+v", m)
	}
	if faces[1].Match != nil {
		t.Errorf("expected recognized=false to be unmatched, got %+v", faces[1].Match)
	}
	if faces[2].Match != nil {
		t.Errorf("expected null match to be unmatched, got %+v", faces[2].Match)
	}
	if len(faces[0].Box) != 4 || faces[0].Box[2] != 220 {
		t.Errorf("unexpected box: %v", faces[0].Box)
	}

	if svc.recognize.fileName != "frame.jpg" {
		t.Errorf("expected frame.jpg upload, got %q", svc.recognize.fileName)
	}
	if !bytes.Equal(svc.recognize.fileData, frame) {
		t.Error("uploaded frame does not match")
	}
	if svc.recognize.sessionForm != "S1" || svc.recognize.sessionQuery != "S1" {
		t.Errorf("expected session id in form and query, got %q / %q", svc.recognize.sessionForm, svc.recognize.sessionQuery)
	}
}

func TestRecognize_EmptyFrame(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	if _, err := c.Recognize(context.Background(), nil, "S1"); err == nil {
		t.Error("expected error for empty frame")
	}
}

func TestRecognize_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c := newTestClient(t, server.URL)
	c.SetTimeouts(Timeouts{Recognize: 20 * time.Millisecond})

	_, err := c.Recognize(context.Background(), []byte{1}, "S1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestMarkAttendance(t *testing.T) {
	server, svc := setupMockServer(t)
	defer server.Close()

	c := newTestClient(t, server.URL)
	err := c.MarkAttendance(context.Background(), "S1", engine.Mark{StudentID: "42", StudentName: "Asha", Confidence: 0.913249})
	if err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}

	if len(svc.marks) != 1 {
		t.Fatalf("expected one mark, got %d", len(svc.marks))
	}
	if svc.markPath != "S1" {
		t.Errorf("expected mark for S1, got %q", svc.markPath)
	}
	body := svc.marks[0]
	if body["student_id"] != "42" || body["student_name"] != "Asha" || body["confidence"] != 0.9132 {
		t.Errorf("unexpected mark body: %v", body)
	}
}

func TestMarkAttendance_Rejected(t *testing.T) {
	server, svc := setupMockServer(t)
	defer server.Close()
	svc.markResponse = `{"marked": false, "reason": "session expired"}`

	c := newTestClient(t, server.URL)
	res, err := c.Mark(context.Background(), "S1", engine.Mark{StudentID: "42", StudentName: "Asha", Confidence: 0.9})
	if !errors.Is(err, ErrMarkRejected) {
		t.Fatalf("expected ErrMarkRejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "session expired") {
		t.Errorf("expected reason in error, got %v", err)
	}
	if res.Marked {
		t.Error("expected Marked=false")
	}
}

func TestMarkAttendance_NotFound(t *testing.T) {
	server, _ := setupMockServer(t)
	defer server.Close()

	c := newTestClient(t, server.URL)
	err := c.MarkAttendance(context.Background(), "missing", engine.Mark{StudentID: "42"})
	if !IsNotFoundError(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if !errors.Is(err, engine.ErrSessionNotJoinable) {
		t.Errorf("expected ErrSessionNotJoinable for unknown session, got %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "Session not found" {
		t.Errorf("expected detail to be parsed, got %v", err)
	}
}

func TestPreviewRecords(t *testing.T) {
	server, _ := setupMockServer(t)
	defer server.Close()

	c := newTestClient(t, server.URL)
	recs, err := c.PreviewRecords(context.Background(), records.RangeWeek)
	if err != nil {
		t.Fatalf("PreviewRecords failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Sem != "3" || recs[0].InTime.IsZero() {
		t.Errorf("unexpected first record: %+v", recs[0])
	}
	if recs[1].StudentID != "7" || recs[1].Confidence != 0.84 || !recs[1].InTime.IsZero() {
		t.Errorf("unexpected second record: %+v", recs[1])
	}

	_, err = c.PreviewRecords(context.Background(), records.RangeYear)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 APIError, got %v", err)
	}
}

func TestExportRecords(t *testing.T) {
	server, svc := setupMockServer(t)
	defer server.Close()

	c := newTestClient(t, server.URL)
	var buf bytes.Buffer
	n, err := c.ExportRecords(context.Background(), records.Filter{Dept: "CSE", Name: "asha", Range: records.RangeMonth}, &buf)
	if err != nil {
		t.Fatalf("ExportRecords failed: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
	}
	if svc.exportQuery != "dept=CSE&name=asha&range=month" {
		t.Errorf("unexpected export query %q", svc.exportQuery)
	}

	rows, err := records.CountRows(&buf)
	if err != nil {
		t.Fatalf("CountRows failed: %v", err)
	}
	if rows != 2 {
		t.Errorf("expected 2 rows, got %d", rows)
	}
}

func TestCaptureResponse(t *testing.T) {
	server, _ := setupMockServer(t)
	defer server.Close()

	dir := t.TempDir()
	c, err := NewClientWithCapture(server.URL, "", filepath.Join(dir, "captures"))
	if err != nil {
		t.Fatalf("NewClientWithCapture failed: %v", err)
	}
	c.SetLocation(time.UTC)

	if _, err := c.ListSessions(context.Background()); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "captures"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "sessions_") {
		t.Errorf("expected one sessions capture, got %v", entries)
	}
}

func TestParseDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string detail", `{"detail":"Session not found"}`, "Session not found"},
		{"validation detail", `{"detail":[{"msg":"field required"},{"msg":"value is not a valid integer"}]}`, "field required; value is not a valid integer"},
		{"plain text", "Internal Server Error", "Internal Server Error"},
		{"no detail", `{"error":"x"}`, `{"error":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseDetail(tt.body); got != tt.want {
				t.Errorf("parseDetail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"abc"`, "abc"},
		{`17`, "17"},
		{`3.5`, "3.5"},
		{`null`, ""},
	}

	for _, tt := range tests {
		var f flexString
		if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if f.String() != tt.want {
			t.Errorf("flexString(%s) = %q, want %q", tt.in, f, tt.want)
		}
	}

	var f flexString
	if err := json.Unmarshal([]byte(`{"a":1}`), &f); err == nil {
		t.Error("expected error for object")
	}
}

func TestParseStartTime(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-02T09:00:00", time.Date(2026, 3, 2, 9, 0, 0, 0, loc)},
		{"2026-03-02T09:00", time.Date(2026, 3, 2, 9, 0, 0, 0, loc)},
		{"2026-03-02 09:00:00", time.Date(2026, 3, 2, 9, 0, 0, 0, loc)},
		{"2026-03-02T09:00:00.123456", time.Date(2026, 3, 2, 9, 0, 0, 123456000, loc)},
		{"2026-03-02T03:30:00Z", time.Date(2026, 3, 2, 9, 0, 0, 0, loc)},
		{"2026-03-02T09:00:00+05:30", time.Date(2026, 3, 2, 9, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		got, err := parseStartTime(tt.in, loc)
		if err != nil {
			t.Errorf("parseStartTime(%q) error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseStartTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := parseStartTime("yesterday", loc); err == nil {
		t.Error("expected error for unparseable time")
	}
}

func TestUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	client.SetUserAgent("attendance-kiosk/test")

	if _, err := client.ListSessions(context.Background()); err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if got != "attendance-kiosk/test" {
		t.Errorf("expected user agent attendance-kiosk/test, got %q", got)
	}
}

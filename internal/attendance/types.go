package attendance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/engine"
)

// flexString accepts a JSON string or number. Identifiers and semesters
// arrive in either form depending on how the record was created.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshal string: %w", err)
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string {
	return string(f)
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// sessionResponse is a session as the service returns it.
type sessionResponse struct {
	ID         flexString `json:"id"`
	SessionID  flexString `json:"session_id"`
	Dept       flexString `json:"dept"`
	Sem        flexString `json:"sem"`
	Subject    string     `json:"subject"`
	CourseName string     `json:"course_name"`
	StartTime  string     `json:"start_time"`
	Duration   flexFloat  `json:"duration"` // minutes
	Status     string     `json:"status"`
}

// startTimeLayouts are tried in order. Layouts without an offset are
// interpreted in the client's location.
var startTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseStartTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range startTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized start time %q", s)
}

func (r sessionResponse) toSession(loc *time.Location) (engine.Session, error) {
	id := r.ID.String()
	if id == "" {
		id = r.SessionID.String()
	}
	if id == "" {
		return engine.Session{}, fmt.Errorf("session without id")
	}

	start, err := parseStartTime(r.StartTime, loc)
	if err != nil {
		return engine.Session{}, fmt.Errorf("session %s: %w", id, err)
	}

	return engine.Session{
		ID:         id,
		Dept:       r.Dept.String(),
		Sem:        r.Sem.String(),
		Subject:    r.Subject,
		CourseName: r.CourseName,
		StartTime:  start,
		Duration:   time.Duration(float64(r.Duration) * float64(time.Minute)),
		Status:     engine.Status(strings.ToUpper(strings.TrimSpace(r.Status))),
	}, nil
}

// createSessionRequest is the body of POST sessions/.
type createSessionRequest struct {
	Dept       string `json:"dept"`
	Sem        string `json:"sem"`
	Subject    string `json:"subject"`
	CourseName string `json:"course_name"`
	StartTime  string `json:"start_time"`
	Duration   int    `json:"duration"`
}

// recognizeResponse is the result of POST recognize/.
type recognizeResponse struct {
	Faces []faceResponse `json:"faces"`
}

type faceResponse struct {
	BBox  []float64      `json:"bbox"`
	Match *matchResponse `json:"match"`
}

type matchResponse struct {
	Recognized  *bool      `json:"recognized"`
	StudentID   flexString `json:"student_id"`
	Name        string     `json:"name"`
	StudentName string     `json:"student_name"`
	Score       flexFloat  `json:"score"`
}

// toMatch returns nil for observations the service did not match to a student.
func (m *matchResponse) toMatch() *engine.Match {
	if m == nil || m.StudentID == "" {
		return nil
	}
	if m.Recognized != nil && !*m.Recognized {
		return nil
	}
	name := m.Name
	if name == "" {
		name = m.StudentName
	}
	return &engine.Match{StudentID: m.StudentID.String(), StudentName: name, Score: float64(m.Score)}
}

// markRequest is the body of POST sessions/{id}/mark.
type markRequest struct {
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	Confidence  float64 `json:"confidence"`
}

// markResponse acknowledges a mark request.
type markResponse struct {
	Marked   bool   `json:"marked"`
	Reason   string `json:"reason,omitempty"`
	Updated  bool   `json:"updated,omitempty"`
	Appended bool   `json:"appended,omitempty"`
}

// recordResponse is one row of the records preview.
type recordResponse struct {
	Dept        flexString `json:"dept"`
	Sem         flexString `json:"sem"`
	Subject     string     `json:"subject"`
	StudentID   flexString `json:"student_id"`
	StudentName string     `json:"student_name"`
	Date        string     `json:"date"`
	InTime      string     `json:"in_time"`
	Confidence  flexFloat  `json:"confidence"`
}

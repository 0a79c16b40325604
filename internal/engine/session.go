package engine

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// Status is the time-derived state of a session.
type Status string

// Session status values.
const (
	StatusLive      Status = "LIVE"
	StatusExpired   Status = "EXPIRED"
	StatusScheduled Status = "SCHEDULED"
)

// Session is a read-only copy of a scheduled attendance window.
type Session struct {
	ID         string        `json:"id"`
	Dept       string        `json:"dept"`
	Sem        string        `json:"sem"`
	Subject    string        `json:"subject"`
	CourseName string        `json:"course_name"`
	StartTime  time.Time     `json:"start_time"`
	Duration   time.Duration `json:"duration"`
	// Status is what the server reported at the last refresh.
	Status Status `json:"status"`
}

// EndTime returns the exclusive end of the session window.
func (s Session) EndTime() time.Time {
	return s.StartTime.Add(s.Duration)
}

// StatusAt derives the status from the schedule: LIVE while
// start <= now < start+duration.
func (s Session) StatusAt(now time.Time) Status {
	switch {
	case now.Before(s.StartTime):
		return StatusScheduled
	case now.Before(s.EndTime()):
		return StatusLive
	default:
		return StatusExpired
	}
}

// Joinable reports whether capture may start for the session. The server
// status must say LIVE and the schedule must agree at now. A missing server
// status defers to the schedule alone.
func (s Session) Joinable(now time.Time) bool {
	if s.Status != "" && s.Status != StatusLive {
		return false
	}
	return s.StatusAt(now) == StatusLive
}

// Expired reports whether either the server or the schedule considers the session over.
func (s Session) Expired(now time.Time) bool {
	return s.Status == StatusExpired || s.StatusAt(now) == StatusExpired
}

// PartitionSessions splits sessions into the non-expired list (live and
// scheduled) and the expired list, preserving order.
func PartitionSessions(sessions []Session, now time.Time) (active, expired []Session) {
	for _, s := range sessions {
		if s.Expired(now) {
			expired = append(expired, s)
		} else {
			active = append(active, s)
		}
	}
	return active, expired
}

// NewSession is the request to create a session.
type NewSession struct {
	Dept            string    `json:"dept"`
	Sem             string    `json:"sem"`
	Subject         string    `json:"subject"`
	CourseName      string    `json:"course_name"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration"`
}

// ErrInvalidSession is returned for incomplete session requests.
var ErrInvalidSession = errors.New("invalid session")

// Validate checks that every field is filled in.
func (n NewSession) Validate() error {
	var missing []string
	for name, v := range map[string]string{
		"dept":        n.Dept,
		"sem":         n.Sem,
		"subject":     n.Subject,
		"course_name": n.CourseName,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if n.StartTime.IsZero() {
		missing = append(missing, "start_time")
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return &validationError{fields: missing}
	}
	if n.DurationMinutes <= 0 {
		return &validationError{msg: "duration must be a positive number of minutes"}
	}
	return nil
}

type validationError struct {
	fields []string
	msg    string
}

func (e *validationError) Error() string {
	if e.msg != "" {
		return "invalid session: " + e.msg
	}
	return "invalid session: missing " + strings.Join(e.fields, ", ")
}

func (e *validationError) Unwrap() error {
	return ErrInvalidSession
}

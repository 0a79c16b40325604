package records

import (
	"net/url"
	"strconv"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
)

// Record is one attendance row as the service reports it.
type Record struct {
	Dept        string    `json:"dept"`
	Sem         string    `json:"sem"`
	Subject     string    `json:"subject"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Date        string    `json:"date"`
	InTime      time.Time `json:"in_time"`
	Confidence  float64   `json:"confidence"`
}

// Filter narrows a records query.
type Filter struct {
	Dept  string
	Sem   string
	Name  string
	Range Range
}

// Query encodes the filter as URL query parameters. Empty fields are omitted.
func (f Filter) Query() url.Values {
	q := url.Values{}
	if f.Dept != "" {
		q.Set("dept", f.Dept)
	}
	if f.Sem != "" {
		q.Set("sem", f.Sem)
	}
	if f.Name != "" {
		q.Set("name", f.Name)
	}
	r := f.Range
	if r == "" {
		r = RangeToday
	}
	q.Set("range", string(r))
	return q
}

// Match reports whether rec passes the dept, sem and name filters.
// Dept and sem must match exactly; name is a case- and accent-insensitive
// substring match.
func (f Filter) Match(rec Record) bool {
	if f.Dept != "" && rec.Dept != f.Dept {
		return false
	}
	if f.Sem != "" && rec.Sem != f.Sem {
		return false
	}
	if f.Name != "" && !facematch.NameContains(rec.StudentName, f.Name) {
		return false
	}
	return true
}

// Apply returns the records passing f, preserving order.
func (f Filter) Apply(recs []Record) []Record {
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// FormatConfidence renders a score the way operators see it.
func FormatConfidence(score float64) string {
	return strconv.FormatFloat(score, 'f', constants.ConfidenceDecimals, 64)
}

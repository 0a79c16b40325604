package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/engine"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
)

// Header is the column layout shared with the service's export.
var Header = []string{"Dept", "Sem", "Subject", "Roll No", "Student Name", "Date", "In Time", "Confidence"}

const (
	dateLayout   = "2006-01-02"
	inTimeLayout = "2006-01-02T15:04:05"
)

// FromPresent converts the present list of a session into records. The
// first sighting is the check-in time.
func FromPresent(s engine.Session, entries []engine.PresentEntry, loc *time.Location) []Record {
	if loc == nil {
		loc = time.Local
	}
	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		seen := e.FirstSeen.In(loc)
		out = append(out, Record{
			Dept:        s.Dept,
			Sem:         s.Sem,
			Subject:     s.Subject,
			StudentID:   e.StudentID,
			StudentName: e.StudentName,
			Date:        seen.Format(dateLayout),
			InTime:      seen,
			Confidence:  e.Confidence,
		})
	}
	return out
}

// FilterPresent returns the entries whose name contains query, ignoring
// case and accents. The input order is kept.
func FilterPresent(entries []engine.PresentEntry, query string) []engine.PresentEntry {
	query = strings.TrimSpace(query)
	if query == "" {
		return entries
	}
	out := make([]engine.PresentEntry, 0, len(entries))
	for _, e := range entries {
		if facematch.NameContains(e.StudentName, query) {
			out = append(out, e)
		}
	}
	return out
}

// WriteCSV writes recs with a header row.
func WriteCSV(w io.Writer, recs []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range recs {
		inTime := ""
		if !r.InTime.IsZero() {
			inTime = r.InTime.Format(inTimeLayout)
		}
		row := []string{r.Dept, r.Sem, r.Subject, r.StudentID, r.StudentName, r.Date, inTime, FormatConfidence(r.Confidence)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %s: %w", r.StudentID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CountRows reads a CSV export and returns the number of data rows.
// The header row is validated against Header.
func CountRows(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	head, err := cr.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if len(head) != len(Header) || !strings.EqualFold(strings.TrimPrefix(head[0], "\ufeff"), Header[0]) {
		return 0, fmt.Errorf("unexpected export header: %s", strings.Join(head, ","))
	}

	n := 0
	for {
		_, err := cr.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("read row %d: %w", n+1, err)
		}
		n++
	}
}

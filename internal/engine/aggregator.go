package engine

import (
	"slices"
	"strings"
	"sync"

	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
)

// Aggregator folds recognition events into the deduplicated set of present
// students. It is the only writer of PresentEntry values.
type Aggregator struct {
	mu      sync.RWMutex
	entries map[string]PresentEntry
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{entries: make(map[string]PresentEntry)}
}

// Apply upserts an entry for every matched face in the event and returns the
// entries that changed. Unmatched faces and empty events change nothing.
//
// Updates are last-write-wins on capture time: an event captured before an
// entry's LastSeen never overwrites it.
func (a *Aggregator) Apply(event RecognitionEvent) []PresentEntry {
	matched := event.Matched()
	if len(matched) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var changed []PresentEntry
	for _, face := range matched {
		m := face.Match
		existing, ok := a.entries[m.StudentID]
		if !ok {
			entry := PresentEntry{
				StudentID:   m.StudentID,
				StudentName: m.StudentName,
				FirstSeen:   event.CapturedAt,
				LastSeen:    event.CapturedAt,
				Confidence:  m.Score,
			}
			a.entries[m.StudentID] = entry
			changed = append(changed, entry)
			continue
		}

		if event.CapturedAt.Before(existing.LastSeen) {
			continue
		}

		existing.LastSeen = event.CapturedAt
		existing.Confidence = m.Score
		if m.StudentName != "" {
			existing.StudentName = m.StudentName
		}
		a.entries[m.StudentID] = existing
		changed = append(changed, existing)
	}
	return changed
}

// Get returns the entry for a student.
func (a *Aggregator) Get(studentID string) (PresentEntry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entries[studentID]
	return e, ok
}

// Len returns the number of present students.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Entries returns a copy of all entries ordered by student name
// (case- and diacritic-insensitive), then by student ID.
func (a *Aggregator) Entries() []PresentEntry {
	a.mu.RLock()
	out := make([]PresentEntry, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e)
	}
	a.mu.RUnlock()

	SortPresent(out)
	return out
}

// Reset clears all entries. Called when a session is (re)joined.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = make(map[string]PresentEntry)
}

// SortPresent orders entries for display by name, then student ID.
func SortPresent(entries []PresentEntry) {
	slices.SortFunc(entries, func(x, y PresentEntry) int {
		if c := facematch.CompareNames(x.StudentName, y.StudentName); c != 0 {
			return c
		}
		return strings.Compare(x.StudentID, y.StudentID)
	})
}

package attendance

import (
	"context"
	"fmt"
	"math"
	"net/url"

	"github.com/kozaktomas/attendance-kiosk/internal/engine"
)

// MarkResult is the service's answer to a mark request.
type MarkResult struct {
	Marked   bool
	Reason   string
	Updated  bool // an existing entry for the student was refreshed
	Appended bool // a new entry was added
}

// Mark submits one attendance mark and returns the acknowledgement.
// A response with marked=false is returned as an error wrapping ErrMarkRejected;
// an unknown session wraps engine.ErrSessionNotJoinable.
func (c *Client) Mark(ctx context.Context, sessionID string, mark engine.Mark) (MarkResult, error) {
	if sessionID == "" {
		return MarkResult{}, fmt.Errorf("session ID is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Write)
	defer cancel()

	body := markRequest{
		StudentID:   mark.StudentID,
		StudentName: mark.StudentName,
		Confidence:  roundConfidence(mark.Confidence),
	}

	resp, err := doPostJSON[markResponse](ctx, c, c.markEndpoint(sessionID), body)
	if IsNotFoundError(err) {
		return MarkResult{}, fmt.Errorf("could not mark attendance: %w: %w", engine.ErrSessionNotJoinable, err)
	}
	if err != nil {
		return MarkResult{}, fmt.Errorf("could not mark attendance: %w", err)
	}

	result := MarkResult{Marked: resp.Marked, Reason: resp.Reason, Updated: resp.Updated, Appended: resp.Appended}
	if !resp.Marked {
		reason := resp.Reason
		if reason == "" {
			reason = "no reason given"
		}
		return result, fmt.Errorf("%w: %s", ErrMarkRejected, reason)
	}
	return result, nil
}

// MarkAttendance records a student as present in a session.
func (c *Client) MarkAttendance(ctx context.Context, sessionID string, mark engine.Mark) error {
	_, err := c.Mark(ctx, sessionID, mark)
	return err
}

func (c *Client) markEndpoint(sessionID string) string {
	return "sessions/" + url.PathEscape(sessionID) + "/mark"
}

// roundConfidence trims scores to four decimals; the service stores them as given.
func roundConfidence(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

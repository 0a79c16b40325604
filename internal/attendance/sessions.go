package attendance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/attendance-kiosk/internal/engine"
)

// sessionStartLayout is how start times are sent when creating a session.
const sessionStartLayout = "2006-01-02T15:04:05"

// ListSessions fetches all sessions. Entries that cannot be parsed are
// skipped rather than failing the whole list.
func (c *Client) ListSessions(ctx context.Context) ([]engine.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Read)
	defer cancel()

	resp, err := doGetJSON[[]sessionResponse](ctx, c, "sessions/")
	if err != nil {
		return nil, fmt.Errorf("could not list sessions: %w", err)
	}

	sessions := make([]engine.Session, 0, len(*resp))
	for _, r := range *resp {
		s, err := r.toSession(c.location)
		if err != nil {
			slog.Warn("skipping session", "id", string(r.ID), "error", err)
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// CreateSession creates a new session. The request is validated before sending.
func (c *Client) CreateSession(ctx context.Context, req engine.NewSession) (engine.Session, error) {
	if err := req.Validate(); err != nil {
		return engine.Session{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Write)
	defer cancel()

	body := createSessionRequest{
		Dept:       req.Dept,
		Sem:        req.Sem,
		Subject:    req.Subject,
		CourseName: req.CourseName,
		StartTime:  req.StartTime.In(c.location).Format(sessionStartLayout),
		Duration:   req.DurationMinutes,
	}

	resp, err := doPostJSON[sessionResponse](ctx, c, "sessions/", body)
	if err != nil {
		return engine.Session{}, fmt.Errorf("could not create session: %w", err)
	}

	s, err := resp.toSession(c.location)
	if err != nil {
		return engine.Session{}, fmt.Errorf("could not parse created session: %w", err)
	}
	return s, nil
}

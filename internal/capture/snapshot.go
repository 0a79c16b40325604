package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
)

// SnapshotSource fetches frames from an HTTP endpoint that returns one still
// image per request (IP cameras, webcam bridges).
type SnapshotSource struct {
	url     string
	maxSize int
	client  *http.Client
}

// NewSnapshotSource creates a source polling url for each frame.
func NewSnapshotSource(url string, maxSize int) *SnapshotSource {
	return &SnapshotSource{url: url, maxSize: maxSize, client: http.DefaultClient}
}

// Snapshot fetches and normalizes a single frame. Any failure to obtain a
// decodable image is reported as ErrNoFrame.
func (s *SnapshotSource) Snapshot(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Frame{}, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := s.client.Do(req) //nolint:gosec // URL comes from operator configuration
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrNoFrame, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Frame{}, fmt.Errorf("%w: camera returned status %d", ErrNoFrame, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxFrameBytes))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrNoFrame, err)
	}

	frame, err := NormalizeFrame(data, s.maxSize)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrNoFrame, err)
	}
	return frame, nil
}

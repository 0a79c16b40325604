// Package capture provides camera frame sources for the capture loop.
package capture

import (
	"context"
	"errors"
)

// ErrNoFrame is returned when a source cannot produce a frame right now
// (camera not ready, empty response, no images left).
var ErrNoFrame = errors.New("no frame available")

// Frame is a single JPEG snapshot ready for upload.
type Frame struct {
	Data   []byte
	Width  int // dimensions of Data after normalization
	Height int
	// Scale maps Data coordinates back to the source image (1 when not resized).
	Scale float64
}

// Source produces a snapshot on demand.
type Source interface {
	Snapshot(ctx context.Context) (Frame, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (Frame, error)

// Snapshot calls f(ctx).
func (f SourceFunc) Snapshot(ctx context.Context) (Frame, error) {
	return f(ctx)
}

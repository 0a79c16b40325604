// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Polling and capture cadence fallbacks, used when a caller passes a zero interval.
const (
	// DefaultSessionPollInterval is how often the session list is refreshed while browsing
	DefaultSessionPollInterval = 15 * time.Second

	// DefaultCaptureInterval is the periodic capture cadence in continuous mode
	DefaultCaptureInterval = 1500 * time.Millisecond
)

// Remote call budgets. Recognition carries a longer budget than simple reads.
const (
	DefaultReadTimeout      = 10 * time.Second
	DefaultWriteTimeout     = 15 * time.Second
	DefaultRecognizeTimeout = 30 * time.Second
	DefaultExportTimeout    = 60 * time.Second
)

// Frame processing constants
const (
	// MaxFrameSize is the maximum dimension (width or height) of an uploaded frame
	MaxFrameSize = 1280

	// FrameJPEGQuality is the JPEG quality used when re-encoding frames
	FrameJPEGQuality = 85

	// MaxFrameBytes caps how much of a snapshot response is read
	MaxFrameBytes = 16 << 20
)

// Confidence display precision matches the two decimals shown to operators.
const ConfidenceDecimals = 2

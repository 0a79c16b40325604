// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100

	// SSEKeepAliveInterval is how often an idle event stream receives a comment line
	SSEKeepAliveInterval = 20 * time.Second
)

// Web server constants
const (
	// DefaultWebPort is the port the UI-shell API listens on
	DefaultWebPort = 8090

	// DefaultRecordsRange is the records range used when none is requested
	DefaultRecordsRange = "today"
)

// Package attendance is the HTTP client for the remote attendance service.
// It provides the session directory, face recognition, attendance marking
// and records preview/export.
package attendance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/engine"
)

// Timeouts bound each kind of remote call.
type Timeouts struct {
	Read      time.Duration // session list, records preview
	Write     time.Duration // session create, attendance mark
	Recognize time.Duration
	Export    time.Duration
}

// DefaultTimeouts returns the built-in call budgets.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Read:      constants.DefaultReadTimeout,
		Write:     constants.DefaultWriteTimeout,
		Recognize: constants.DefaultRecognizeTimeout,
		Export:    constants.DefaultExportTimeout,
	}
}

// Client talks to the attendance service API.
type Client struct {
	URL        string
	parsedURL  *url.URL
	token      string
	captureDir string
	httpClient *http.Client
	timeouts   Timeouts
	location   *time.Location
	userAgent  string
}

// resolveURL builds a full URL from the base API URL and the given path segments.
// If the last segment contains a query string (e.g. "attendance/preview?range=week"),
// it is split so JoinPath only receives the path portion and the query is appended.
func (c *Client) resolveURL(pathSegments ...string) string {
	if len(pathSegments) == 0 {
		return c.parsedURL.String()
	}
	last := pathSegments[len(pathSegments)-1]
	if pathPart, query, ok := strings.Cut(last, "?"); ok {
		pathSegments[len(pathSegments)-1] = pathPart
		result := c.parsedURL.JoinPath(pathSegments...)
		result.RawQuery = query
		return result.String()
	}
	return c.parsedURL.JoinPath(pathSegments...).String()
}

// readErrorBody reads the response body for error messages.
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return "(could not read error body)"
	}
	return string(body)
}

// SetCaptureDir enables API response capturing to the specified directory.
// Pass an empty string to disable capturing.
func (c *Client) SetCaptureDir(dir string) error {
	if dir == "" {
		c.captureDir = ""
		return nil
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("could not create capture directory: %w", err)
	}
	c.captureDir = dir
	return nil
}

// captureResponse saves the API response body to a file if capturing is enabled.
func (c *Client) captureResponse(endpoint string, body []byte) {
	if c.captureDir == "" {
		return
	}

	endpoint, _, _ = strings.Cut(endpoint, "?")
	filename := strings.Trim(strings.ReplaceAll(endpoint, "/", "_"), "_")
	timestamp := time.Now().Format("20060102_150405.000")
	filename = fmt.Sprintf("%s_%s.json", filename, timestamp)

	path := filepath.Join(c.captureDir, filename)

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "", "  "); err == nil {
		body = prettyJSON.Bytes()
	}

	if err := os.WriteFile(path, body, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to capture response to %s: %v\n", path, err)
	}
}

// SetTimeouts replaces the per-call budgets. Zero fields keep their current value.
func (c *Client) SetTimeouts(t Timeouts) {
	if t.Read > 0 {
		c.timeouts.Read = t.Read
	}
	if t.Write > 0 {
		c.timeouts.Write = t.Write
	}
	if t.Recognize > 0 {
		c.timeouts.Recognize = t.Recognize
	}
	if t.Export > 0 {
		c.timeouts.Export = t.Export
	}
}

// SetLocation sets the zone used for session start times that carry no offset.
func (c *Client) SetLocation(loc *time.Location) {
	if loc != nil {
		c.location = loc
	}
}

// SetUserAgent sets the User-Agent sent with every request.
func (c *Client) SetUserAgent(ua string) {
	c.userAgent = ua
}

// SetHTTPClient replaces the HTTP client used for requests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		c.httpClient = hc
	}
}

// NewClient creates a client for the service at rawURL (without the /api/v1 suffix).
// The token is sent as a bearer token when non-empty.
func NewClient(rawURL, token string) (*Client, error) {
	return NewClientWithCapture(rawURL, token, "")
}

// NewClientWithCapture creates a client with optional response capturing.
// Pass an empty captureDir to disable capturing.
func NewClientWithCapture(rawURL, token, captureDir string) (*Client, error) {
	rawURL = strings.TrimRight(strings.TrimSpace(rawURL), "/")
	if rawURL == "" {
		return nil, fmt.Errorf("attendance API URL is required")
	}
	apiURL := rawURL + "/api/v1"
	parsed, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid attendance API URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid attendance API URL %q: scheme must be http or https", rawURL)
	}

	c := &Client{
		URL:        apiURL,
		parsedURL:  parsed,
		token:      token,
		httpClient: http.DefaultClient,
		timeouts:   DefaultTimeouts(),
		location:   time.Local,
	}
	if captureDir != "" {
		if err := c.SetCaptureDir(captureDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

var (
	_ engine.SessionDirectory = (*Client)(nil)
	_ engine.Recognizer       = (*Client)(nil)
	_ engine.Recorder         = (*Client)(nil)
)

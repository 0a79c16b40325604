package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/kozaktomas/attendance-kiosk/internal/engine"
)

// frameFileName is the name the frame is uploaded under.
const frameFileName = "frame.jpg"

// Recognize submits one frame and returns the observed faces in the order
// the service reports them.
func (c *Client) Recognize(ctx context.Context, image []byte, sessionID string) ([]engine.FaceObservation, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", frameFileName)
	if err != nil {
		return nil, fmt.Errorf("could not create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("could not write frame data: %w", err)
	}
	if sessionID != "" {
		if err := writer.WriteField("session_id", sessionID); err != nil {
			return nil, fmt.Errorf("could not write session field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("could not close writer: %w", err)
	}

	endpoint := "recognize/"
	if sessionID != "" {
		endpoint += "?" + url.Values{"session_id": {sessionID}}.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Recognize)
	defer cancel()

	data, err := c.do(ctx, http.MethodPost, endpoint, &body, writer.FormDataContentType(), http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	var resp recognizeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("could not unmarshal recognize response: %w", err)
	}

	faces := make([]engine.FaceObservation, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		faces = append(faces, engine.FaceObservation{Box: f.BBox, Match: f.Match.toMatch()})
	}
	return faces, nil
}

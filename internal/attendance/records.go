package attendance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/records"
)

// PreviewRecords returns the attendance rows for a date range.
func (c *Client) PreviewRecords(ctx context.Context, rng records.Range) ([]records.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Read)
	defer cancel()

	endpoint := "attendance/preview?" + records.Filter{Range: rng}.Query().Encode()
	resp, err := doGetJSON[[]recordResponse](ctx, c, endpoint)
	if err != nil {
		return nil, fmt.Errorf("could not load attendance preview: %w", err)
	}

	out := make([]records.Record, 0, len(*resp))
	for _, r := range *resp {
		out = append(out, r.toRecord(c.location))
	}
	return out, nil
}

func (r recordResponse) toRecord(loc *time.Location) records.Record {
	rec := records.Record{
		Dept:        r.Dept.String(),
		Sem:         r.Sem.String(),
		Subject:     r.Subject,
		StudentID:   r.StudentID.String(),
		StudentName: r.StudentName,
		Date:        r.Date,
		Confidence:  float64(r.Confidence),
	}
	if strings.TrimSpace(r.InTime) != "" {
		if t, err := parseStartTime(r.InTime, loc); err == nil {
			rec.InTime = t
		}
	}
	return rec
}

// OpenExport starts the CSV export matching filter. The caller must close
// the returned body. size is -1 when the service does not announce a length.
// The export timeout covers the whole download and ends when the body is closed.
func (c *Client) OpenExport(ctx context.Context, filter records.Filter) (body io.ReadCloser, size int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Export)

	endpoint := "attendance/export?" + filter.Query().Encode()
	resp, err := c.send(ctx, http.MethodGet, endpoint, nil, "", http.StatusOK)
	if err != nil {
		cancel()
		return nil, 0, fmt.Errorf("could not export attendance: %w", err)
	}
	return &cancelBody{ReadCloser: resp.Body, cancel: cancel}, resp.ContentLength, nil
}

// ExportRecords streams the CSV export matching filter into w and returns
// the number of bytes written.
func (c *Client) ExportRecords(ctx context.Context, filter records.Filter, w io.Writer) (int64, error) {
	body, _, err := c.OpenExport(ctx, filter)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("could not download export: %w", err)
	}
	return n, nil
}

// cancelBody releases the request context when the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

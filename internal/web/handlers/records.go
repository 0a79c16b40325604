package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/records"
)

// RecordsSource is the part of the attendance client the records pages use.
type RecordsSource interface {
	PreviewRecords(ctx context.Context, rng records.Range) ([]records.Record, error)
	OpenExport(ctx context.Context, filter records.Filter) (io.ReadCloser, int64, error)
}

// RecordsHandler serves the attendance records preview and export.
type RecordsHandler struct {
	source RecordsSource
	now    func() time.Time
}

// NewRecordsHandler creates a new records handler
func NewRecordsHandler(source RecordsSource) *RecordsHandler {
	return &RecordsHandler{source: source, now: time.Now}
}

func filterFromRequest(r *http.Request) (records.Filter, error) {
	q := r.URL.Query()
	rng, err := records.ParseRange(q.Get("range"))
	if err != nil {
		return records.Filter{}, err
	}
	return records.Filter{
		Dept:  q.Get("dept"),
		Sem:   q.Get("sem"),
		Name:  q.Get("name"),
		Range: rng,
	}, nil
}

// PreviewResponse is the filtered record list.
type PreviewResponse struct {
	Range   records.Range    `json:"range"`
	Total   int              `json:"total"`
	Records []records.Record `json:"records"`
}

// Preview fetches the records for the range and filters them locally.
func (h *RecordsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := h.source.PreviewRecords(r.Context(), filter.Range)
	if err != nil {
		log.Printf("records preview failed: %s", sanitizeForLog(err.Error()))
		respondEngineError(w, err)
		return
	}

	matched := filter.Apply(recs)
	if matched == nil {
		matched = []records.Record{}
	}
	respondJSON(w, http.StatusOK, PreviewResponse{
		Range:   filter.Range,
		Total:   len(recs),
		Records: matched,
	})
}

// Export streams the service's CSV export to the client.
func (h *RecordsHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, size, err := h.source.OpenExport(r.Context(), filter)
	if err != nil {
		log.Printf("records export failed: %s", sanitizeForLog(err.Error()))
		respondEngineError(w, err)
		return
	}
	defer body.Close()

	filename := fmt.Sprintf("attendance_%s_%s.csv", filter.Range, h.now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.Printf("records export copy failed: %v", err)
	}
}

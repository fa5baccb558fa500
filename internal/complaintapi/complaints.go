package complaintapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/railtriage/internal/complaint"
	"github.com/linnemanlabs/railtriage/internal/triage"
)

// submitRequest is the complaint intake payload. Image bytes arrive
// base64-encoded; the transport decodes them before the engine sees them.
type submitRequest struct {
	Text        string    `json:"text"`
	ImageBase64 string    `json:"image_base64,omitempty"`
	VideoRef    string    `json:"video_ref,omitempty"`
	Location    string    `json:"location,omitempty"`
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
}

// submitResponse is the acknowledgment returned on intake.
type submitResponse struct {
	ID          string               `json:"id"`
	Category    complaint.Category   `json:"category"`
	Urgency     float64              `json:"urgency"`
	Department  complaint.Department `json:"department"`
	SLADeadline time.Time            `json:"sla_deadline"`
	IsNew       bool                 `json:"is_new_cluster"`
	DuplicateOf string               `json:"duplicate_of,omitempty"`
	Degraded    bool                 `json:"degraded"`
}

func (a *API) handleSubmitComplaint(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	// Backdated submissions are allowed (batch imports); the service
	// defaults a zero timestamp to now.
	in := &complaint.Input{
		Text:             req.Text,
		VideoRef:         req.VideoRef,
		SubmittedAt:      req.SubmittedAt,
		ReporterLocation: req.Location,
	}
	if req.ImageBase64 != "" {
		img, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid image encoding"})
			return
		}
		in.ImageBytes = img
	}

	rec, err := a.svc.Submit(r.Context(), in)
	if err != nil {
		a.writeFatal(w, r, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("railtriage.complaint.id", rec.ID),
		attribute.String("railtriage.complaint.category", string(rec.Decision.Category)),
		attribute.Float64("railtriage.complaint.urgency", rec.Decision.Urgency),
	)

	writeJSON(w, http.StatusCreated, toSubmitResponse(rec))
}

func (a *API) handleGetComplaint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("railtriage.complaint.id", id))

	rec, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get complaint", "id", id)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleListComplaints(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	recs, err := a.svc.List(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list complaints")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if recs == nil {
		recs = []*triage.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"complaints": recs})
}

func toSubmitResponse(rec *triage.Record) submitResponse {
	return submitResponse{
		ID:          rec.ID,
		Category:    rec.Decision.Category,
		Urgency:     rec.Decision.Urgency,
		Department:  rec.Decision.Department,
		SLADeadline: rec.Decision.SLADeadline,
		IsNew:       rec.Decision.IsNewCluster,
		DuplicateOf: rec.Decision.DuplicateOf,
		Degraded:    rec.Decision.Degraded,
	}
}

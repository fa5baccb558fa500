package complaintapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/railtriage/internal/analytics"
	"github.com/linnemanlabs/railtriage/internal/complaint"
	"github.com/linnemanlabs/railtriage/internal/triage"
)

type fakeService struct {
	submitErr error
	records   map[string]*triage.Record
	lastInput *complaint.Input
}

func (f *fakeService) Submit(_ context.Context, in *complaint.Input) (*triage.Record, error) {
	f.lastInput = in
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	rec := &triage.Record{
		ID:          "01JXTESTTESTTESTTESTTESTTE",
		Text:        in.Text,
		SubmittedAt: in.SubmittedAt,
		Decision: triage.Decision{
			Category:     complaint.CategoryMaintenance,
			Urgency:      0.45,
			Department:   complaint.DeptMaintenance,
			SLADeadline:  in.SubmittedAt.Add(6 * time.Hour),
			ClusterID:    "cluster-1",
			IsNewCluster: true,
		},
	}
	return rec, nil
}

func (f *fakeService) Get(_ context.Context, id string) (*triage.Record, bool, error) {
	rec, ok := f.records[id]
	return rec, ok, nil
}

func (f *fakeService) List(_ context.Context, limit int) ([]*triage.Record, error) {
	out := make([]*triage.Record, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeReporter struct {
	err error
}

func (f *fakeReporter) Trends(context.Context) (*analytics.TrendsReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &analytics.TrendsReport{
		Trends:          []analytics.TrendItem{{Category: complaint.CategoryMaintenance, Count: 2, Percentage: 100}},
		Metrics:         map[string]float64{"avg_urgency": 0.45},
		TotalComplaints: 2,
	}, nil
}

func (f *fakeReporter) DepartmentStats(context.Context) ([]analytics.DepartmentStat, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []analytics.DepartmentStat{{Department: complaint.DeptMaintenance, TotalComplaints: 2}}, nil
}

func (f *fakeReporter) UrgencyDistribution(context.Context) (*analytics.UrgencyDistribution, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &analytics.UrgencyDistribution{TotalComplaints: 2}, nil
}

func (f *fakeReporter) Clusters(context.Context) ([]analytics.ClusterSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []analytics.ClusterSummary{
		{ClusterID: "cluster-1", Category: complaint.CategoryMaintenance, MemberCount: 3, Active: true},
		{ClusterID: "cluster-2", Category: complaint.CategoryCleanliness, MemberCount: 1, Active: false},
	}, nil
}

func (f *fakeReporter) RecurringIssues(_ context.Context, minMembers int) ([]analytics.ClusterSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	if minMembers > 3 {
		return nil, nil
	}
	return []analytics.ClusterSummary{{ClusterID: "cluster-1", Category: complaint.CategoryMaintenance, MemberCount: 3}}, nil
}

func (f *fakeReporter) WriteTrendsCSV(_ context.Context, w io.Writer) error {
	_, err := io.WriteString(w, "Category,Count,Percentage\nmaintenance,2,100.00\n")
	return err
}

func (f *fakeReporter) WriteComplaintsCSV(_ context.Context, w io.Writer) error {
	_, err := io.WriteString(w, "ID,SubmittedAt,Category,Urgency,Department,SLADeadline,Location,IsNewCluster,ClusterID,Degraded\n")
	return err
}

const testAdminToken = "admin-secret"

func newTestRouter(t *testing.T, svc *fakeService) chi.Router {
	t.Helper()
	api := New(nil, svc, &fakeReporter{}, testAdminToken)
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r
}

func adminGet(t *testing.T, r chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// New / constructor

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil, nil, \"\") did not panic; expected panic for nil service")
		}
	}()
	New(nil, nil, nil, "")
}

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	api := New(nil, &fakeService{}, nil, "")
	if api.logger == nil {
		t.Fatal("New left logger nil; expected Nop logger")
	}
}

// Complaint intake

func TestHandleSubmitComplaint_Valid(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	r := newTestRouter(t, svc)

	body := `{"text":"seat broken in coach B2","location":"coach B2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp submitResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID == "" {
		t.Error("expected non-empty complaint ID in acknowledgment")
	}
	if resp.Category != complaint.CategoryMaintenance {
		t.Errorf("category = %q, want %q", resp.Category, complaint.CategoryMaintenance)
	}
	if resp.Department != complaint.DeptMaintenance {
		t.Errorf("department = %q, want %q", resp.Department, complaint.DeptMaintenance)
	}
	if !resp.IsNew {
		t.Error("expected is_new_cluster true")
	}
	if svc.lastInput == nil || svc.lastInput.ReporterLocation != "coach B2" {
		t.Errorf("service saw input %+v, want reporter location forwarded", svc.lastInput)
	}
}

func TestHandleSubmitComplaint_ImageDecoded(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	r := newTestRouter(t, svc)

	// "aGVsbG8=" is base64 for "hello".
	body := `{"text":"see photo","image_base64":"aGVsbG8="}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if got := string(svc.lastInput.ImageBytes); got != "hello" {
		t.Errorf("image bytes = %q, want %q", got, "hello")
	}
}

func TestHandleSubmitComplaint_BadPayloads(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeService{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{bad`},
		{"invalid base64", `{"text":"x","image_base64":"!!!not-base64!!!"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleSubmitComplaint_StorageDown(t *testing.T) {
	t.Parallel()

	svc := &fakeService{submitErr: fmt.Errorf("%w: connection refused", triage.ErrStorageUnavailable)}
	r := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", strings.NewReader(`{"text":"x"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Error("response leaked internal error detail")
	}
	if !strings.Contains(rec.Body.String(), "please retry") {
		t.Errorf("body = %q, want generic retry message", rec.Body.String())
	}
}

// Status lookup

func TestHandleGetComplaint(t *testing.T) {
	t.Parallel()

	svc := &fakeService{records: map[string]*triage.Record{
		"known-id": {ID: "known-id", Text: "dirty toilet"},
	}}
	r := newTestRouter(t, svc)

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{"existing", "known-id", http.StatusOK},
		{"missing", "no-such-id", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/v1/complaints/"+tt.id, http.NoBody)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("GET /api/v1/complaints/%s = %d, want %d", tt.id, rec.Code, tt.wantStatus)
			}
		})
	}
}

// Chat intake

func TestHandleChatMessage_ComplaintBecomesRecord(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	r := newTestRouter(t, svc)

	body := `{"message":"the toilet in coach B2 is broken"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp chatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Complaint == nil {
		t.Fatal("expected complaint acknowledgment for complaint-intent message")
	}
	if resp.Complaint.ID == "" {
		t.Error("expected non-empty complaint ID")
	}
	if svc.lastInput == nil || !strings.Contains(svc.lastInput.Text, "toilet") {
		t.Errorf("service saw input %+v, want message text forwarded", svc.lastInput)
	}
}

func TestHandleChatMessage_GreetingIsAnalysisOnly(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	r := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/messages", strings.NewReader(`{"message":"hello there"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp chatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Complaint != nil {
		t.Error("greeting must not produce a complaint record")
	}
	if svc.lastInput != nil {
		t.Error("service must not be called for non-complaint intents")
	}
}

func TestHandleChatMessage_EmptyMessage(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeService{})

	tests := []struct {
		name string
		body string
	}{
		{"empty message", `{"message":""}`},
		{"missing field", `{}`},
		{"invalid JSON", `{bad`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/messages", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

// Admin surface

func TestAdminRoutes_RequireBearerToken(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeService{records: map[string]*triage.Record{}})

	paths := []string{
		"/api/v1/complaints",
		"/api/v1/complaints/export.csv",
		"/api/v1/trends",
		"/api/v1/trends/export.csv",
		"/api/v1/trends/departments",
		"/api/v1/trends/urgency",
		"/api/v1/clusters",
		"/api/v1/clusters/recurring",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("GET %s without token = %d, want %d", path, rec.Code, http.StatusUnauthorized)
			}

			if got := adminGet(t, r, path); got.Code != http.StatusOK {
				t.Errorf("GET %s with token = %d, want %d", path, got.Code, http.StatusOK)
			}
		})
	}
}

func TestAdminRoutes_DisabledWithoutToken(t *testing.T) {
	t.Parallel()

	api := New(nil, &fakeService{}, &fakeReporter{}, "")
	r := chi.NewRouter()
	api.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trends", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /api/v1/trends with admin disabled = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleTrends_ReportShape(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeService{})

	rec := adminGet(t, r, "/api/v1/trends")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var report analytics.TrendsReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.TotalComplaints != 2 {
		t.Errorf("total complaints = %d, want 2", report.TotalComplaints)
	}
	if len(report.Trends) != 1 || report.Trends[0].Category != complaint.CategoryMaintenance {
		t.Errorf("trends = %+v, want single maintenance item", report.Trends)
	}
}

func TestHandleRecurringIssues_MinMembers(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeService{})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantEmpty  bool
	}{
		{"default", "/api/v1/clusters/recurring", http.StatusOK, false},
		{"explicit min", "/api/v1/clusters/recurring?min_members=3", http.StatusOK, false},
		{"high min filters all", "/api/v1/clusters/recurring?min_members=5", http.StatusOK, true},
		{"below floor", "/api/v1/clusters/recurring?min_members=1", http.StatusBadRequest, false},
		{"not a number", "/api/v1/clusters/recurring?min_members=abc", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := adminGet(t, r, tt.path)
			if rec.Code != tt.wantStatus {
				t.Fatalf("GET %s = %d, want %d", tt.path, rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp struct {
				RecurringIssues []analytics.ClusterSummary `json:"recurring_issues"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if tt.wantEmpty && len(resp.RecurringIssues) != 0 {
				t.Errorf("expected empty issue list, got %d", len(resp.RecurringIssues))
			}
			if !tt.wantEmpty && len(resp.RecurringIssues) == 0 {
				t.Error("expected at least one recurring issue")
			}
		})
	}
}

func TestHandleListComplaints_InvalidLimit(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeService{records: map[string]*triage.Record{}})

	rec := adminGet(t, r, "/api/v1/complaints?limit=0")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0 = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCSVExports_Headers(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeService{})

	tests := []struct {
		path     string
		filename string
		firstCol string
	}{
		{"/api/v1/trends/export.csv", "railtriage_trends.csv", "Category"},
		{"/api/v1/complaints/export.csv", "railtriage_complaints.csv", "ID"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			rec := adminGet(t, r, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if got := rec.Header().Get("Content-Type"); got != "text/csv" {
				t.Errorf("Content-Type = %q, want text/csv", got)
			}
			if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, tt.filename) {
				t.Errorf("Content-Disposition = %q, want filename %q", got, tt.filename)
			}
			if !strings.HasPrefix(rec.Body.String(), tt.firstCol) {
				t.Errorf("body starts with %q, want %q column first", rec.Body.String()[:min(20, rec.Body.Len())], tt.firstCol)
			}
		})
	}
}

// Tracing

func TestHandleSubmitComplaint_AnnotatesSpan(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	r := newTestRouter(t, &fakeService{})

	ctx, span := tp.Tracer("test").Start(context.Background(), "http.server")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", strings.NewReader(`{"text":"window jammed"}`))
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	span.End()

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported spans = %d, want 1", len(spans))
	}

	attrs := make(map[string]string)
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["railtriage.complaint.id"] == "" {
		t.Error("span missing railtriage.complaint.id attribute")
	}
	if got := attrs["railtriage.complaint.category"]; got != string(complaint.CategoryMaintenance) {
		t.Errorf("railtriage.complaint.category = %q, want %q", got, complaint.CategoryMaintenance)
	}
}

// Fuzz

func FuzzComplaintIntake(f *testing.F) {
	api := New(nil, &fakeService{}, nil, "")
	r := chi.NewRouter()
	api.RegisterRoutes(r)

	seeds := []string{
		"",
		"{}",
		`{"text":"broken fan"}`,
		`{"text":"x","image_base64":"aGVsbG8="}`,
		`{"text":"x","image_base64":"%%%"}`,
		"{invalid json",
		"\x00\x01\xff",
		strings.Repeat("a", 10000),
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, body string) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", strings.NewReader(body))
		rec := httptest.NewRecorder()

		// Must not panic
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated && rec.Code != http.StatusBadRequest {
			t.Errorf("POST /api/v1/complaints with body len=%d = %d, want 201 or 400", len(body), rec.Code)
		}
	})
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/asset-audit/internal/audit"
	"github.com/crucial707/asset-audit/internal/middleware"
	"github.com/crucial707/asset-audit/internal/models"
	"github.com/crucial707/asset-audit/internal/store/memstore"
)

// requestWithChiURLParams returns a request with chi route context and URL params set.
func requestWithChiURLParams(method, path string, body []byte, params map[string]string) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.UserIDKey, 42)
	return r.WithContext(ctx)
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func intp(v int) *int { return &v }

func newTestHandler(t *testing.T) (*AuditHandler, *memstore.ActivityLog) {
	t.Helper()
	st := memstore.New()
	st.AddCategory(1, "Computers")
	st.AddCategory(2, "Furniture")
	st.AddLocation(10, "HQ")
	st.AddCustodian(100, "Ana")
	for _, a := range []models.Asset{
		{ID: 1, Code: "A1", Name: "Laptop", CategoryID: intp(1), LocationID: intp(10), CustodianID: intp(100), Condition: "good"},
		{ID: 2, Code: "A2", Name: "Desktop", CategoryID: intp(1), LocationID: intp(10), CustodianID: intp(100), Condition: "good"},
		{ID: 3, Code: "A3", Name: "Monitor", CategoryID: intp(1), LocationID: intp(10), CustodianID: intp(100), Condition: "good"},
		{ID: 4, Code: "F1", Name: "Desk", CategoryID: intp(2), LocationID: intp(10), CustodianID: intp(100), Condition: "good"},
	} {
		if err := st.AddAsset(a); err != nil {
			t.Fatalf("AddAsset: %v", err)
		}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := audit.NewService(st)
	svc.Logger = logger
	svc.Now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	activity := memstore.NewActivityLog()
	return NewAuditHandler(svc, activity, logger), activity
}

// createAndStart creates an audit over category 1 via the handler and starts it.
func createAndStart(t *testing.T, h *AuditHandler) int {
	t.Helper()
	rr := httptest.NewRecorder()
	h.CreateAudit(rr, requestWithChiURLParams("POST", "/v1/audits", []byte(`{"name":"Q1","criteria":{"category_ids":[1]}}`), nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("CreateAudit status: got %d, body %s", rr.Code, rr.Body.String())
	}
	var a models.Audit
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &a); err != nil {
		t.Fatalf("decode audit: %v", err)
	}

	rr = httptest.NewRecorder()
	h.StartAudit(rr, requestWithChiURLParams("POST", "/v1/audits/1/start", nil, map[string]string{"id": strconv.Itoa(a.ID)}))
	if rr.Code != http.StatusOK {
		t.Fatalf("StartAudit status: got %d, body %s", rr.Code, rr.Body.String())
	}
	return a.ID
}

func scan(h *AuditHandler, id int, code string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	body, _ := json.Marshal(map[string]string{"code": code})
	h.ScanAudit(rr, requestWithChiURLParams("POST", "/v1/audits/x/scan", body, map[string]string{"id": strconv.Itoa(id)}))
	return rr
}

func TestAuditHandler_CreateAudit(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := httptest.NewRecorder()
	h.CreateAudit(rr, requestWithChiURLParams("POST", "/v1/audits", []byte(`{"name":"Q1 computers","criteria":{"category_ids":[1]}}`), nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if !env.Success || env.Message != "audit created" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	var a models.Audit
	if err := json.Unmarshal(env.Data, &a); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if a.Code != "LEV-202603-001" || a.ExpectedCount != 3 || a.State != models.AuditDraft {
		t.Errorf("unexpected audit: %+v", a)
	}
}

func TestAuditHandler_CreateAudit_Validation(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing name", `{"criteria":{}}`, "name"},
		{"zero id", `{"name":"x","criteria":{"location_ids":[0]}}`, "criteria.location_ids[0]"},
		{"unknown category", `{"name":"x","criteria":{"category_ids":[99]}}`, "criteria.category_ids"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			rr := httptest.NewRecorder()
			h.CreateAudit(rr, requestWithChiURLParams("POST", "/v1/audits", []byte(tt.body), nil))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", rr.Code)
			}
			env := decodeEnvelope(t, rr)
			if _, ok := env.Fields[tt.wantField]; !ok {
				t.Errorf("fields %v missing %q", env.Fields, tt.wantField)
			}
		})
	}
}

func TestAuditHandler_CreateAudit_InvalidJSON(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := httptest.NewRecorder()
	h.CreateAudit(rr, requestWithChiURLParams("POST", "/v1/audits", []byte(`{"name":`), nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != "invalid JSON" {
		t.Errorf("error: got %q", env.Error)
	}
}

func TestAuditHandler_InvalidAndMissingID(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := httptest.NewRecorder()
	h.GetAudit(rr, requestWithChiURLParams("GET", "/v1/audits/abc", nil, map[string]string{"id": "abc"}))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid id: got %d, want 400", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.GetAudit(rr, requestWithChiURLParams("GET", "/v1/audits/999", nil, map[string]string{"id": "999"}))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing audit: got %d, want 404", rr.Code)
	}

	rr = scan(h, 999, "A1")
	if rr.Code != http.StatusNotFound {
		t.Errorf("scan missing audit: got %d, want 404", rr.Code)
	}
}

func TestAuditHandler_ScanOutcomes(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createAndStart(t, h)

	rr := scan(h, id, "A1")
	if rr.Code != http.StatusOK {
		t.Fatalf("scan A1: got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Message != "asset found" {
		t.Errorf("message: got %q", env.Message)
	}

	rr = scan(h, id, "A1")
	if rr.Code != http.StatusConflict {
		t.Fatalf("rescan A1: got %d, want 409", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	var res audit.ScanResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode scan result: %v", err)
	}
	if res.Outcome != audit.OutcomeAlreadyScanned || res.Asset == nil || res.Asset.Code != "A1" {
		t.Errorf("already scanned data: %+v", res)
	}

	rr = scan(h, id, "F1")
	if rr.Code != http.StatusOK || decodeEnvelope(t, rr).Message != "asset outside audit scope recorded" {
		t.Errorf("scan F1: got %d", rr.Code)
	}

	rr = scan(h, id, "ZZ-404")
	if rr.Code != http.StatusOK || decodeEnvelope(t, rr).Message != "unexpected asset recorded" {
		t.Errorf("scan unknown: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ScanAudit(rr, requestWithChiURLParams("POST", "/v1/audits/x/scan", []byte(`{"code":""}`), map[string]string{"id": strconv.Itoa(id)}))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty code: got %d, want 400", rr.Code)
	}
}

func TestAuditHandler_StateConflicts(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createAndStart(t, h)
	params := map[string]string{"id": strconv.Itoa(id)}

	rr := httptest.NewRecorder()
	h.StartAudit(rr, requestWithChiURLParams("POST", "/v1/audits/x/start", nil, params))
	if rr.Code != http.StatusConflict {
		t.Fatalf("second start: got %d, want 409", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != "audit already started or completed" {
		t.Errorf("error: got %q", env.Error)
	}

	rr = httptest.NewRecorder()
	h.DeleteAudit(rr, requestWithChiURLParams("DELETE", "/v1/audits/x", nil, params))
	if rr.Code != http.StatusConflict {
		t.Errorf("delete in progress: got %d, want 409", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.FinalizeAudit(rr, requestWithChiURLParams("POST", "/v1/audits/x/finalize", nil, params))
	if rr.Code != http.StatusOK {
		t.Fatalf("finalize: got %d", rr.Code)
	}

	rr = scan(h, id, "A2")
	if rr.Code != http.StatusConflict {
		t.Errorf("scan completed audit: got %d, want 409", rr.Code)
	}
}

func TestAuditHandler_ReportAndFindings(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createAndStart(t, h)
	params := map[string]string{"id": strconv.Itoa(id)}
	scan(h, id, "A1")
	scan(h, id, "ZZ-404")

	rr := httptest.NewRecorder()
	h.FinalizeAudit(rr, requestWithChiURLParams("POST", "/v1/audits/x/finalize", nil, params))
	if rr.Code != http.StatusOK {
		t.Fatalf("finalize: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Report(rr, requestWithChiURLParams("GET", "/v1/audits/x/report", nil, params))
	if rr.Code != http.StatusOK {
		t.Fatalf("report: got %d", rr.Code)
	}
	var report models.Report
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	st := report.Statistics
	if st.ExpectedCount != 3 || st.Found != 1 || st.Missing != 2 || st.Extras != 1 || st.FoundPct != 33.33 {
		t.Errorf("unexpected statistics: %+v", st)
	}

	rr = httptest.NewRecorder()
	h.ListFindings(rr, requestWithChiURLParams("GET", "/v1/audits/x/findings?kind=asset_not_found", nil, params))
	if rr.Code != http.StatusOK {
		t.Fatalf("findings: got %d", rr.Code)
	}
	var findings []models.Finding
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &findings); err != nil {
		t.Fatalf("decode findings: %v", err)
	}
	if len(findings) != 2 {
		t.Errorf("asset_not_found findings: got %d, want 2", len(findings))
	}

	for _, q := range []string{"kind=bogus", "severity=urgent", "unresolved=maybe"} {
		rr = httptest.NewRecorder()
		h.ListFindings(rr, requestWithChiURLParams("GET", "/v1/audits/x/findings?"+q, nil, params))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", q, rr.Code)
		}
	}
}

func TestAuditHandler_ListAuditsAndDelete(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, name := range []string{"first", "second"} {
		rr := httptest.NewRecorder()
		h.CreateAudit(rr, requestWithChiURLParams("POST", "/v1/audits", []byte(`{"name":"`+name+`"}`), nil))
		if rr.Code != http.StatusCreated {
			t.Fatalf("create %s: got %d", name, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	h.ListAudits(rr, httptest.NewRequest("GET", "/v1/audits?limit=1&state=draft", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list: got %d", rr.Code)
	}
	var page struct {
		Audits []models.Audit `json:"audits"`
		Total  int            `json:"total"`
		Limit  int            `json:"limit"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &page); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if page.Total != 2 || page.Limit != 1 || len(page.Audits) != 1 || page.Audits[0].Name != "second" {
		t.Errorf("unexpected page: %+v", page)
	}

	rr = httptest.NewRecorder()
	h.DeleteAudit(rr, requestWithChiURLParams("DELETE", "/v1/audits/1", nil, map[string]string{"id": "1"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("delete draft: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.GetAudit(rr, requestWithChiURLParams("GET", "/v1/audits/1", nil, map[string]string{"id": "1"}))
	if rr.Code != http.StatusNotFound {
		t.Errorf("get deleted: got %d, want 404", rr.Code)
	}
}

func TestAuditHandler_Options(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := httptest.NewRecorder()
	h.Options(rr, httptest.NewRequest("GET", "/v1/audits/options", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("options: got %d", rr.Code)
	}
	var opts models.CriteriaOptions
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &opts); err != nil {
		t.Fatalf("decode options: %v", err)
	}
	if len(opts.Categories) != 2 || opts.Categories[0].Name != "Computers" || len(opts.Custodians) != 1 {
		t.Errorf("unexpected options: %+v", opts)
	}
}

func TestAuditHandler_ActivityLog(t *testing.T) {
	h, activity := newTestHandler(t)
	id := createAndStart(t, h)
	scan(h, id, "A1")

	entries, err := activity.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries: got %d, want 3", len(entries))
	}
	if entries[0].Action != "scan" || entries[0].UserID != 42 || !strings.Contains(entries[0].Details, "A1") {
		t.Errorf("latest entry: %+v", entries[0])
	}

	rr := httptest.NewRecorder()
	h.ListActivity(rr, httptest.NewRequest("GET", "/v1/activity?limit=2", nil))
	var listed []models.ActivityEntry
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &listed); err != nil {
		t.Fatalf("decode activity: %v", err)
	}
	if len(listed) != 2 || listed[1].Action != "start" {
		t.Errorf("unexpected activity page: %+v", listed)
	}
}

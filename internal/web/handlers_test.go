package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/datadesk/datadesk/internal/config"
	"github.com/datadesk/datadesk/internal/pipeline"
)

const sampleCSV = "name,age,score\nalice,30,81.5\nbob,25,\nalice,30,81.5\ncarol,41,77\n"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server = config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		IdleTimeout:    5 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
	cfg.Upload = config.UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 2, MaxWaitTime: time.Second}
	cfg.Session = config.SessionConfig{TTL: time.Hour, CleanupInterval: time.Minute, MaxSessions: 10}
	cfg.Chart = config.ChartConfig{Width: 640, Height: 480}
	cfg.Report = config.ReportConfig{TopCategories: 5, MaxCorrelationColumns: 12}
	cfg.Rate = config.RateLimitConfig{Enabled: false}

	return NewServer(cfg, pipeline.NewService(cfg), "body{margin:0}")
}

type namedFile struct {
	name string
	data string
}

// multipartBody builds a multipart request body with one part per file under
// the "files" field.
func multipartBody(t *testing.T, files []namedFile) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatalf("CreateFormFile(%q) error = %v", f.name, err)
		}
		if _, err := part.Write([]byte(f.data)); err != nil {
			t.Fatalf("write part %q error = %v", f.name, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func doRequest(t *testing.T, s *Server, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, s, method, target, bytes.NewBufferString(body), "application/json")
}

type uploadFileResult struct {
	FileName string `json:"file_name"`
	Session  *struct {
		ID      string     `json:"id"`
		Rows    int        `json:"rows"`
		Cols    int        `json:"cols"`
		Columns []string   `json:"columns"`
		State   string     `json:"state"`
		Preview [][]string `json:"preview"`
	} `json:"session"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

type uploadResponseBody struct {
	Files []uploadFileResult `json:"files"`
}

// uploadOne uploads a single file and returns its session ID.
func uploadOne(t *testing.T, s *Server, name, data string) string {
	t.Helper()

	body, contentType := multipartBody(t, []namedFile{{name: name, data: data}})
	rec := doRequest(t, s, http.MethodPost, "/api/upload", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp uploadResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if len(resp.Files) != 1 || resp.Files[0].Session == nil {
		t.Fatalf("upload did not produce a session: %s", rec.Body.String())
	}
	return resp.Files[0].Session.ID
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestDashboardPage(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	html := rec.Body.String()
	if !strings.Contains(html, "<!DOCTYPE html>") {
		t.Error("page missing doctype")
	}
	if !strings.Contains(html, "body{margin:0}") {
		t.Error("page missing injected stylesheet")
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", nil, "")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); !strings.Contains(got, "img-src 'self' data: blob:") {
		t.Errorf("Content-Security-Policy = %q missing img-src entries", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	uploadOne(t, s, "data.csv", sampleCSV)

	rec := doRequest(t, s, http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var health struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
	if health.Sessions != 1 {
		t.Errorf("sessions = %d, want 1", health.Sessions)
	}
}

func TestUploadBatchMixedResults(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, []namedFile{
		{name: "good.csv", data: sampleCSV},
		{name: "notes.txt", data: "not tabular"},
	})
	rec := doRequest(t, s, http.MethodPost, "/api/upload", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp uploadResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if len(resp.Files) != 2 {
		t.Fatalf("len(files) = %d, want 2", len(resp.Files))
	}

	good := resp.Files[0]
	if good.Session == nil {
		t.Fatalf("good.csv produced no session: %+v", good)
	}
	if good.Session.Rows != 4 || good.Session.Cols != 3 {
		t.Errorf("good.csv shape = %dx%d, want 4x3", good.Session.Rows, good.Session.Cols)
	}
	if good.Session.State != "loaded" {
		t.Errorf("state = %q, want loaded", good.Session.State)
	}

	bad := resp.Files[1]
	if bad.Error == nil {
		t.Fatalf("notes.txt should carry an error: %+v", bad)
	}
	if bad.Error.Code != "FILE002" {
		t.Errorf("error code = %q, want FILE002", bad.Error.Code)
	}
}

func TestUploadNoFile(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, nil)
	rec := doRequest(t, s, http.MethodPost, "/api/upload", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	resp := decodeErrorResponse(t, rec)
	if resp.Code != "FILE004" {
		t.Errorf("code = %q, want FILE004", resp.Code)
	}
	if resp.Action == "" {
		t.Error("error response missing action")
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := uploadOne(t, s, "data.csv", sampleCSV)

	// The new session shows up in the listing.
	rec := doRequest(t, s, http.MethodGet, "/api/sessions", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listing struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Sessions) != 1 || listing.Sessions[0].ID != id {
		t.Fatalf("listing = %+v, want single session %s", listing.Sessions, id)
	}

	// Cleaning operations report their effect.
	rec = doJSON(t, s, http.MethodPost, "/api/session/"+id+"/clean/dedupe", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dedupe status = %d, body %s", rec.Code, rec.Body.String())
	}
	var dedupe struct {
		Removed int `json:"removed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &dedupe); err != nil {
		t.Fatalf("decode dedupe result: %v", err)
	}
	if dedupe.Removed != 1 {
		t.Errorf("removed = %d, want 1", dedupe.Removed)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/session/"+id+"/clean/impute", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("impute status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/session/"+id+"/clean/scale", `{"strategy":"minmax"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("scale status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Projection narrows the table and advances the state.
	rec = doJSON(t, s, http.MethodPost, "/api/session/"+id+"/select", `{"columns":["age","score"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("select status = %d, body %s", rec.Code, rec.Body.String())
	}
	var snap struct {
		Cols    int      `json:"cols"`
		Columns []string `json:"columns"`
		State   string   `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Cols != 2 || snap.State != "projected" {
		t.Errorf("snapshot = %+v, want 2 columns in projected state", snap)
	}

	// Removal frees the session.
	rec = doRequest(t, s, http.MethodDelete, "/api/session/"+id+"/", nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/session/"+id+"/", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if resp := decodeErrorResponse(t, rec); resp.Code != "SES001" {
		t.Errorf("code = %q, want SES001", resp.Code)
	}
}

func TestSessionFragmentHTMX(t *testing.T) {
	s := newTestServer(t)
	id := uploadOne(t, s, "data.csv", sampleCSV)

	req := httptest.NewRequest(http.MethodGet, "/api/session/"+id+"/", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	html := rec.Body.String()
	if !strings.Contains(html, "data.csv") {
		t.Error("fragment missing file name")
	}
	if !strings.Contains(html, `<table class="preview">`) {
		t.Error("fragment missing preview table")
	}
}

func TestChartEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := uploadOne(t, s, "xy.csv", "x,y\n1,2\n2,4\n3,6\n4,8\n")

	rec := doJSON(t, s, http.MethodPost, "/api/session/"+id+"/chart", `{"kind":"scatter","x":"x","y":"y"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("response body is not a PNG")
	}
}

func TestChartPreconditionFailure(t *testing.T) {
	s := newTestServer(t)
	id := uploadOne(t, s, "names.csv", "name\nalice\nbob\n")

	rec := doJSON(t, s, http.MethodPost, "/api/session/"+id+"/chart", `{"kind":"scatter","x":"name","y":"name"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if resp := decodeErrorResponse(t, rec); resp.Code != "CHT001" {
		t.Errorf("code = %q, want CHT001", resp.Code)
	}
}

func TestReportEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := uploadOne(t, s, "data.csv", sampleCSV)

	rec := doRequest(t, s, http.MethodGet, "/api/session/"+id+"/report", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	html := rec.Body.String()
	if !strings.Contains(html, "data.csv") {
		t.Error("report missing source file name")
	}
	if !strings.Contains(html, "score") {
		t.Error("report missing column name")
	}
}

func TestExportEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := uploadOne(t, s, "data.csv", sampleCSV)

	rec := doRequest(t, s, http.MethodGet, "/api/session/"+id+"/export?format=csv", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("csv export status = %d, body %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `attachment; filename="data.csv"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}) {
		t.Error("csv export missing UTF-8 BOM")
	}

	rec = doRequest(t, s, http.MethodGet, "/api/session/"+id+"/export?format=xlsx", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("xlsx export status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type = %q, want spreadsheet MIME", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "data.xlsx") {
		t.Errorf("Content-Disposition = %q, want data.xlsx", cd)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	s := newTestServer(t)
	id := uploadOne(t, s, "data.csv", sampleCSV)

	rec := doRequest(t, s, http.MethodGet, "/api/session/"+id+"/export?format=pdf", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if resp := decodeErrorResponse(t, rec); resp.Code != "EXP001" {
		t.Errorf("code = %q, want EXP001", resp.Code)
	}
}

func TestScaleUnknownStrategy(t *testing.T) {
	s := newTestServer(t)
	id := uploadOne(t, s, "data.csv", sampleCSV)

	rec := doJSON(t, s, http.MethodPost, "/api/session/"+id+"/clean/scale", `{"strategy":"log"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/session/nope/clean/dedupe", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	resp := decodeErrorResponse(t, rec)
	if resp.Code != "SES001" {
		t.Errorf("code = %q, want SES001", resp.Code)
	}
	if resp.Message == "" || resp.Error == "" {
		t.Errorf("error response incomplete: %+v", resp)
	}
}

func TestHTMXErrorFragment(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/session/nope/clean/dedupe", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "SES001") {
		t.Errorf("fragment %q missing error code", body)
	}
}

func TestRateLimiterBlocks(t *testing.T) {
	limiter := newRateLimiter(2, time.Minute)
	handler := limiter.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.1.2.3:5000"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if resp := decodeErrorResponse(t, rec); resp.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", resp.Code)
	}

	// A different client keeps its own token budget.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.9.9.9:5000"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client status = %d, want %d", rec.Code, http.StatusOK)
	}
}

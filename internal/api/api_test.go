package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"webpdf/internal/config"
	"webpdf/internal/convert"
	"webpdf/internal/jobs"
	"webpdf/internal/render"
)

type fakeConverter struct {
	result *convert.Result
	err    error
	input  string
}

func (f *fakeConverter) run(input string) (*convert.Result, error) {
	f.input = input
	return f.result, f.err
}

func (f *fakeConverter) ConvertHTML(_ context.Context, html string) (*convert.Result, error) {
	return f.run(html)
}

func (f *fakeConverter) ConvertHTMLBase64(_ context.Context, encoded string) (*convert.Result, error) {
	return f.run(encoded)
}

func (f *fakeConverter) ConvertURL(_ context.Context, target string) (*convert.Result, error) {
	return f.run(target)
}

func (f *fakeConverter) ConvertURLA4(_ context.Context, target string) (*convert.Result, error) {
	return f.run(target)
}

func (f *fakeConverter) ConvertURLPaginated(_ context.Context, target string) (*convert.Result, error) {
	return f.run(target)
}

type fakeJobStore struct {
	jobs   map[string]*jobs.Job
	failed map[string]int
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[string]*jobs.Job{}, failed: map[string]int{}}
}

func (f *fakeJobStore) Create(_ context.Context, mode jobs.Mode, url, correlationID string) (*jobs.Job, error) {
	job := &jobs.Job{ID: "job-1", Mode: mode, URL: url, Status: jobs.StatusQueued, CorrelationID: correlationID}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobStore) Get(_ context.Context, id string) (*jobs.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobStore) Fail(_ context.Context, id string, code int, _ string) (*jobs.Job, error) {
	f.failed[id] = code
	return f.jobs[id], nil
}

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

type fakeArtifacts struct {
	objects map[string][]byte
}

func (f *fakeArtifacts) PresignedDownloadURL(_ context.Context, objectKey, _ string, _ time.Duration) (string, error) {
	return "https://files.example/" + objectKey, nil
}

func (f *fakeArtifacts) OpenObject(_ context.Context, objectKey string) (io.ReadCloser, int64, error) {
	data, ok := f.objects[objectKey]
	if !ok {
		return nil, 0, errors.New("missing")
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

type fakeCounter struct {
	counts    map[string]int64
	expireErr error
	deleted   []string
}

func (f *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(_ context.Context, _ string, _ time.Duration) *redis.BoolCmd {
	if f.expireErr != nil {
		return redis.NewBoolResult(false, f.expireErr)
	}
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCounter) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.counts, key)
	}
	f.deleted = append(f.deleted, keys...)
	return redis.NewIntResult(int64(len(keys)), nil)
}

type testServer struct {
	router    *gin.Engine
	converter *fakeConverter
	store     *fakeJobStore
	queue     *fakeQueue
	artifacts *fakeArtifacts
}

func newTestServer(t *testing.T, cfg config.APIConfig, caps render.Capabilities) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	ts := &testServer{
		converter: &fakeConverter{},
		store:     newFakeJobStore(),
		queue:     &fakeQueue{},
		artifacts: &fakeArtifacts{objects: map[string][]byte{}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts.router = NewRouter(cfg, logger)
	RegisterRoutes(ts.router, cfg, Handlers{
		Health:  NewHealthHandler(caps, true),
		Convert: NewConvertHandler(ts.converter),
		Jobs:    NewJobHandler(ts.store, ts.queue, ts.artifacts, &fakeCounter{}, JobOptions{SubmitPerMin: 2}),
	})
	return ts
}

func (ts *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

var allCaps = render.Capabilities{Browser: true, Imaging: true}

func TestConvertA4_WritesPDFWithHeaders(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{}, allCaps)
	ts.converter.result = &convert.Result{PDF: []byte("%PDF-1.4"), Filename: "web_a4.pdf", Pages: 3, Clipped: true}

	w := ts.do(http.MethodPost, "/convert-url-a4", `{"url":"https://example.com"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment; filename=web_a4.pdf" {
		t.Fatalf("content disposition = %q", cd)
	}
	if w.Header().Get("X-Page-Count") != "3" || w.Header().Get("X-Content-Clipped") != "true" {
		t.Fatalf("headers = %v", w.Header())
	}
	if w.Body.String() != "%PDF-1.4" || ts.converter.input != "https://example.com" {
		t.Fatalf("body %q input %q", w.Body.String(), ts.converter.input)
	}
}

func TestConvertHTML_PassesContent(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{}, allCaps)
	ts.converter.result = &convert.Result{PDF: []byte("%PDF"), Filename: "documento.pdf"}

	w := ts.do(http.MethodPost, "/convert", `{"html_content":"<h1>Hola</h1>"}`, nil)
	if w.Code != http.StatusOK || ts.converter.input != "<h1>Hola</h1>" {
		t.Fatalf("status %d input %q", w.Code, ts.converter.input)
	}
	if w.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("X-Cache = %q", w.Header().Get("X-Cache"))
	}
}

func TestConvert_ErrorUsesServiceStatus(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{}, allCaps)
	ts.converter.err = &convert.Error{Status: http.StatusBadRequest, Message: "could not resolve the domain name of https://x.invalid"}

	w := ts.do(http.MethodPost, "/convert-url", `{"url":"https://x.invalid"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.Contains(body["error"], "resolve") {
		t.Fatalf("error = %q", body["error"])
	}
}

func TestConvert_MalformedBody(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{}, allCaps)
	w := ts.do(http.MethodPost, "/convert-url-paginated", `{"url":`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestConvert_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{MaxBodyBytes: 16}, allCaps)
	w := ts.do(http.MethodPost, "/convert", `{"html_content":"`+strings.Repeat("a", 64)+`"}`, nil)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHealth_Degraded(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{}, render.Capabilities{Imaging: true, BrowserError: "chromium not found"})
	w := ts.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "degraded" || body["browser"] != "not available" || body["imaging"] != "available" {
		t.Fatalf("body = %v", body)
	}
}

func TestAPIKey_ProtectsConversionsOnly(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{APIKey: "k"}, allCaps)
	ts.converter.result = &convert.Result{PDF: []byte("%PDF"), Filename: "documento.pdf"}

	if w := ts.do(http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	if w := ts.do(http.MethodPost, "/convert", `{"html_content":"x"}`, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no key status = %d", w.Code)
	}
	if w := ts.do(http.MethodPost, "/convert", `{"html_content":"x"}`, map[string]string{"X-API-Key": "k"}); w.Code != http.StatusOK {
		t.Fatalf("with key status = %d", w.Code)
	}
}

func TestCreateJob_QueuesTask(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{}, allCaps)

	w := ts.do(http.MethodPost, "/v1/jobs", `{"url":"https://example.com","mode":"paginated"}`, map[string]string{"X-Correlation-ID": "corr-7"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	if len(ts.queue.tasks) != 1 || ts.queue.tasks[0].Type() != "pdf:convert" {
		t.Fatalf("tasks = %v", ts.queue.tasks)
	}
	job := ts.store.jobs["job-1"]
	if job.Mode != jobs.ModePaginated || job.CorrelationID != "corr-7" {
		t.Fatalf("job = %+v", job)
	}
}

func TestCreateJob_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad url", `{"url":"ftp://example.com"}`, http.StatusBadRequest},
		{"bad mode", `{"url":"https://example.com","mode":"landscape"}`, http.StatusBadRequest},
		{"no body", ``, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, config.APIConfig{}, allCaps)
			if w := ts.do(http.MethodPost, "/v1/jobs", tt.body, nil); w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if len(ts.queue.tasks) != 0 {
				t.Fatal("task queued for rejected request")
			}
		})
	}
}

func TestCreateJob_Quota(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{}, allCaps)
	body := `{"url":"https://example.com"}`
	for i := range 2 {
		if w := ts.do(http.MethodPost, "/v1/jobs", body, nil); w.Code != http.StatusAccepted {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
	if w := ts.do(http.MethodPost, "/v1/jobs", body, nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d", w.Code)
	}
}

func TestCreateJob_QueueDown(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{}, allCaps)
	ts.queue.err = errors.New("redis down")

	w := ts.do(http.MethodPost, "/v1/jobs", `{"url":"https://example.com"}`, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	if _, ok := ts.store.failed["job-1"]; !ok {
		t.Fatal("job not marked failed")
	}
}

func TestGetJob(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{}, allCaps)
	ts.store.jobs["done"] = &jobs.Job{ID: "done", Status: jobs.StatusCompleted, ObjectKey: "jobs/done/web_a4.pdf", Filename: "web_a4.pdf", Pages: 2}
	ts.store.jobs["busy"] = &jobs.Job{ID: "busy", Status: jobs.StatusRunning}

	w := ts.do(http.MethodGet, "/v1/jobs/done", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["download_url"] != "https://files.example/jobs/done/web_a4.pdf" || body["status"] != "completed" {
		t.Fatalf("body = %v", body)
	}

	w = ts.do(http.MethodGet, "/v1/jobs/busy", "", nil)
	if strings.Contains(w.Body.String(), "download_url") {
		t.Fatalf("running job has download url: %s", w.Body.String())
	}

	if w := ts.do(http.MethodGet, "/v1/jobs/missing", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", w.Code)
	}
}

func TestDownloadJob(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{}, allCaps)
	ts.store.jobs["done"] = &jobs.Job{ID: "done", Status: jobs.StatusCompleted, ObjectKey: "jobs/done/documento.pdf", Filename: "documento.pdf", Pages: 1}
	ts.store.jobs["busy"] = &jobs.Job{ID: "busy", Status: jobs.StatusQueued}
	ts.artifacts.objects["jobs/done/documento.pdf"] = []byte("%PDF-stored")

	w := ts.do(http.MethodGet, "/v1/jobs/done/download", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "%PDF-stored" {
		t.Fatalf("status %d body %q", w.Code, w.Body.String())
	}
	if w.Header().Get("Content-Disposition") != "attachment; filename=documento.pdf" {
		t.Fatalf("headers = %v", w.Header())
	}

	if w := ts.do(http.MethodGet, "/v1/jobs/busy/download", "", nil); w.Code != http.StatusConflict {
		t.Fatalf("queued job status = %d", w.Code)
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{AllowedOrigins: []string{"http://localhost:3000"}}, allCaps)

	w := ts.do(http.MethodOptions, "/convert", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin = %q (status %d)", got, w.Code)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/assetflow/jobs"
	"github.com/BaSui01/assetflow/pipeline"
	"github.com/BaSui01/assetflow/types"
)

// fakeJobService 内存实现，事件由测试通过 events 通道注入
type fakeJobService struct {
	mu        sync.Mutex
	jobs      map[string]*jobs.Job
	archives  map[string][]byte
	events    chan jobs.Event
	submitErr error
	limit     int
	unsubbed  bool
}

func newFakeJobService() *fakeJobService {
	return &fakeJobService{
		jobs:     map[string]*jobs.Job{},
		archives: map[string][]byte{},
		events:   make(chan jobs.Event, 8),
	}
}

func (f *fakeJobService) Submit(ctx context.Context, in pipeline.RequestInput) (*jobs.Job, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	job := &jobs.Job{ID: "job-1", Status: jobs.StatusQueued, Concept: in.Concept, Request: in}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobService) Get(ctx context.Context, id string) (*jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, types.Errorf(types.ErrNotFound, "job %s not found", id)
	}
	return job, nil
}

func (f *fakeJobService) List(ctx context.Context, limit int) ([]*jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	var out []*jobs.Job
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeJobService) Archive(ctx context.Context, id string) ([]byte, *jobs.Job, error) {
	job, err := f.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != jobs.StatusSucceeded {
		return nil, job, types.Errorf(types.ErrInvalidRequest, "job %s is %s", id, job.Status).
			WithHTTPStatus(http.StatusConflict)
	}
	return f.archives[id], job, nil
}

func (f *fakeJobService) Subscribe(ctx context.Context, id string) (<-chan jobs.Event, func(), error) {
	if _, err := f.Get(ctx, id); err != nil {
		return nil, nil, err
	}
	return f.events, func() {
		f.mu.Lock()
		f.unsubbed = true
		f.mu.Unlock()
	}, nil
}

func (f *fakeJobService) Cancel(ctx context.Context, id string) (*jobs.Job, error) {
	job, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, types.Errorf(types.ErrInvalidRequest, "job %s is already %s", id, job.Status).
			WithHTTPStatus(http.StatusConflict)
	}
	job.Status = jobs.StatusCancelled
	return job, nil
}

func newJobsServer(svc JobService) *httptest.Server {
	h := NewJobsHandler(svc, 1<<20, nil, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/jobs", h.HandleSubmit)
	mux.HandleFunc("GET /api/v1/jobs", h.HandleList)
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.HandleGet)
	mux.HandleFunc("GET /api/v1/jobs/{id}/archive", h.HandleArchive)
	mux.HandleFunc("DELETE /api/v1/jobs/{id}", h.HandleCancel)
	mux.HandleFunc("GET /api/v1/jobs/{id}/events", h.HandleEvents)
	return httptest.NewServer(mux)
}

func doRequest(t *testing.T, method, url, body string) (*http.Response, Response) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env Response
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func TestJobsHandler_SubmitAndGet(t *testing.T) {
	svc := newFakeJobService()
	srv := newJobsServer(svc)
	defer srv.Close()

	resp, env := doRequest(t, http.MethodPost, srv.URL+"/api/v1/jobs", `{"concept":"Space farming sim"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "/api/v1/jobs/job-1", resp.Header.Get("Location"))
	assert.True(t, env.Success)
	data := env.Data.(map[string]any)
	assert.Equal(t, "job-1", data["id"])
	assert.Equal(t, "queued", data["status"])

	resp, env = doRequest(t, http.MethodGet, srv.URL+"/api/v1/jobs/job-1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Space farming sim", env.Data.(map[string]any)["concept"])

	resp, env = doRequest(t, http.MethodGet, srv.URL+"/api/v1/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(types.ErrNotFound), env.Error.Code)
}

func TestJobsHandler_SubmitQueueFull(t *testing.T) {
	svc := newFakeJobService()
	svc.submitErr = types.NewError(types.ErrServiceUnavailable, "job queue is full, retry later").
		WithHTTPStatus(http.StatusServiceUnavailable).
		WithRetryable(true)
	srv := newJobsServer(svc)
	defer srv.Close()

	resp, env := doRequest(t, http.MethodPost, srv.URL+"/api/v1/jobs", `{"concept":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.True(t, env.Error.Retryable)
}

func TestJobsHandler_List(t *testing.T) {
	svc := newFakeJobService()
	svc.jobs["a"] = &jobs.Job{ID: "a", Status: jobs.StatusSucceeded}
	srv := newJobsServer(svc)
	defer srv.Close()

	resp, env := doRequest(t, http.MethodGet, srv.URL+"/api/v1/jobs?limit=500", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	svc.mu.Lock()
	assert.Equal(t, maxListLimit, svc.limit)
	svc.mu.Unlock()
	assert.EqualValues(t, 1, env.Data.(map[string]any)["count"])

	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/api/v1/jobs?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobsHandler_Archive(t *testing.T) {
	svc := newFakeJobService()
	svc.jobs["done"] = &jobs.Job{ID: "done", Status: jobs.StatusSucceeded, Results: []pipeline.EntrySummary{
		{Path: "game_concept"},
		{Path: "images.character_image_1", Artifact: types.ArtifactSummary{Error: "HTTP 500"}},
	}}
	svc.jobs["busy"] = &jobs.Job{ID: "busy", Status: jobs.StatusRunning}
	svc.archives["done"] = []byte("PK\x05\x06zip")
	srv := newJobsServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/jobs/done/archive")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="assetflow-done.zip"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "2", resp.Header.Get(HeaderPlanEntries))
	assert.Equal(t, "1", resp.Header.Get(HeaderPlanFailures))

	resp, env := doRequest(t, http.MethodGet, srv.URL+"/api/v1/jobs/busy/archive", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestJobsHandler_Cancel(t *testing.T) {
	svc := newFakeJobService()
	svc.jobs["q"] = &jobs.Job{ID: "q", Status: jobs.StatusQueued}
	svc.jobs["done"] = &jobs.Job{ID: "done", Status: jobs.StatusFailed}
	srv := newJobsServer(svc)
	defer srv.Close()

	resp, env := doRequest(t, http.MethodDelete, srv.URL+"/api/v1/jobs/q", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "cancelled", env.Data.(map[string]any)["status"])

	resp, _ = doRequest(t, http.MethodDelete, srv.URL+"/api/v1/jobs/done", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestJobsHandler_Events(t *testing.T) {
	svc := newFakeJobService()
	svc.jobs["job-1"] = &jobs.Job{ID: "job-1", Status: jobs.StatusRunning}
	srv := newJobsServer(svc)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/jobs/job-1/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	svc.events <- jobs.Event{JobID: "job-1", Status: jobs.StatusRunning,
		Progress: pipeline.Progress{Fraction: 0.5, Stage: pipeline.StageImages, Label: "images", Done: 1, Total: 2}}
	svc.events <- jobs.Event{JobID: "job-1", Status: jobs.StatusSucceeded,
		Progress: pipeline.Progress{Fraction: 1, Stage: pipeline.StageDone, Done: 2, Total: 2}}
	close(svc.events)

	var got []jobs.Event
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
			break
		}
		var ev jobs.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		got = append(got, ev)
	}

	require.Len(t, got, 2)
	assert.Equal(t, 0.5, got[0].Progress.Fraction)
	assert.Equal(t, pipeline.StageImages, got[0].Progress.Stage)
	assert.Equal(t, jobs.StatusSucceeded, got[1].Status)

	assert.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.unsubbed
	}, time.Second, 10*time.Millisecond)
}

func TestJobsHandler_EventsUnknownJob(t *testing.T) {
	srv := newJobsServer(newFakeJobService())
	defer srv.Close()

	resp, env := doRequest(t, http.MethodGet, srv.URL+"/api/v1/jobs/nope/events", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
}

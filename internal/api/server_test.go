package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scu-nlp/scu-crawler/internal/config"
	"github.com/scu-nlp/scu-crawler/internal/crawler"
	"github.com/scu-nlp/scu-crawler/internal/storage/sqlite"
)

type fakeRunner struct {
	mu      sync.Mutex
	targets []string
	pages   []int
	block   chan struct{}
	result  crawler.Result
}

func (f *fakeRunner) Run(_ context.Context, target string, pages int) crawler.Result {
	f.mu.Lock()
	f.targets = append(f.targets, target)
	f.pages = append(f.pages, pages)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.result
}

type fakeHistory struct {
	mu       sync.Mutex
	started  map[string]string
	finished map[string]crawler.Result
	latest   map[string]*sqlite.Run
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		started:  make(map[string]string),
		finished: make(map[string]crawler.Result),
		latest:   make(map[string]*sqlite.Run),
	}
}

func (f *fakeHistory) RecordStart(_ context.Context, id, target string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started[id] = target
	return nil
}

func (f *fakeHistory) RecordFinish(_ context.Context, id string, _ time.Time, result crawler.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[id] = result
	return nil
}

func (f *fakeHistory) LatestRun(_ context.Context, target string) (*sqlite.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest[target], nil
}

func newTestServer(t *testing.T, runner Runner, history RunHistory) (*Server, chan string) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.RawDataDir = t.TempDir()

	srv := NewServer(runner, history, cfg, zap.NewNop())
	done := make(chan string, 4)
	srv.onRunDone = func(target string) { done <- target }
	return srv, done
}

func postCrawl(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/crawl", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func waitDone(t *testing.T, done chan string) string {
	t.Helper()
	select {
	case target := <-done:
		return target
	case <-time.After(5 * time.Second):
		t.Fatal("background crawl did not finish")
		return ""
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{}, newFakeHistory())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestStartCrawlRejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{}, newFakeHistory())

	require.Equal(t, http.StatusBadRequest, postCrawl(t, srv, `not json`).Code)
	require.Equal(t, http.StatusBadRequest, postCrawl(t, srv, `{"target":"everything"}`).Code)
	require.Equal(t, http.StatusBadRequest, postCrawl(t, srv, `{"target":"news","pages":-1}`).Code)
}

func TestStartCrawlRunsInBackground(t *testing.T) {
	runner := &fakeRunner{result: crawler.Result{Success: true, TotalArticles: 5}}
	history := newFakeHistory()
	srv, done := newTestServer(t, runner, history)

	rec := postCrawl(t, srv, `{"target":"news","pages":2}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Status string `json:"status"`
		RunID  string `json:"run_id"`
		Target string `json:"target"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "started", resp.Status)
	require.Equal(t, "news", resp.Target)
	_, err := uuid.Parse(resp.RunID)
	require.NoError(t, err)

	require.Equal(t, "news", waitDone(t, done))

	history.mu.Lock()
	require.Equal(t, "news", history.started[resp.RunID])
	require.Equal(t, runner.result, history.finished[resp.RunID])
	history.mu.Unlock()

	runner.mu.Lock()
	require.Equal(t, []string{"news"}, runner.targets)
	require.Equal(t, []int{2}, runner.pages)
	runner.mu.Unlock()
}

func TestStartCrawlConflicts(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{}), result: crawler.Result{Success: true}}
	srv, done := newTestServer(t, runner, newFakeHistory())

	require.Equal(t, http.StatusAccepted, postCrawl(t, srv, `{"target":"news"}`).Code)
	require.Equal(t, http.StatusConflict, postCrawl(t, srv, `{"target":"news"}`).Code)
	require.Equal(t, http.StatusConflict, postCrawl(t, srv, `{"target":"all"}`).Code, "all conflicts with any active target")
	require.Equal(t, http.StatusAccepted, postCrawl(t, srv, `{"target":"personnel"}`).Code, "distinct targets run side by side")

	close(runner.block)
	waitDone(t, done)
	waitDone(t, done)

	require.Equal(t, http.StatusAccepted, postCrawl(t, srv, `{"target":"news"}`).Code, "slot frees after completion")
	waitDone(t, done)
}

func TestStartCrawlAllBlocksEverything(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{}), result: crawler.Result{Success: true}}
	srv, done := newTestServer(t, runner, newFakeHistory())

	require.Equal(t, http.StatusAccepted, postCrawl(t, srv, `{"target":"all"}`).Code)
	require.Equal(t, http.StatusConflict, postCrawl(t, srv, `{"target":"news"}`).Code)
	require.Equal(t, http.StatusConflict, postCrawl(t, srv, `{"target":"personnel"}`).Code)

	close(runner.block)
	waitDone(t, done)
}

func TestStatusReportsRunsAndFiles(t *testing.T) {
	history := newFakeHistory()
	finished := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	ok := true
	history.latest["personnel"] = &sqlite.Run{
		ID:             "run-1",
		Target:         "personnel",
		StartedAt:      finished.Add(-time.Minute),
		FinishedAt:     &finished,
		Success:        &ok,
		TotalDocuments: 7,
	}

	srv, _ := newTestServer(t, &fakeRunner{}, history)
	require.NoError(t, os.WriteFile(
		filepath.Join(srv.cfg.Storage.RawDataDir, srv.cfg.Storage.Files.PDFLinks),
		[]byte("https://x/a.pdf\n"), 0o600))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Targets map[string]struct {
			Running bool        `json:"running"`
			LastRun *sqlite.Run `json:"last_run"`
		} `json:"targets"`
		Files map[string]struct {
			Exists    bool  `json:"exists"`
			SizeBytes int64 `json:"size_bytes"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	personnel := resp.Targets["personnel"]
	require.False(t, personnel.Running)
	require.NotNil(t, personnel.LastRun)
	require.Equal(t, "run-1", personnel.LastRun.ID)
	require.Equal(t, 7, personnel.LastRun.TotalDocuments)

	news := resp.Targets["news"]
	require.Nil(t, news.LastRun)

	links := resp.Files[srv.cfg.Storage.Files.PDFLinks]
	require.True(t, links.Exists)
	require.EqualValues(t, len("https://x/a.pdf\n"), links.SizeBytes)

	missing := resp.Files[srv.cfg.Storage.Files.NewsData]
	require.False(t, missing.Exists)
}

func TestMetricsEndpointServes(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{}, newFakeHistory())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

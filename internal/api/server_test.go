package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RobinCoderZhao/newsdigest/internal/collector"
	"github.com/RobinCoderZhao/newsdigest/internal/dispatch"
	"github.com/RobinCoderZhao/newsdigest/internal/feed"
	"github.com/RobinCoderZhao/newsdigest/internal/processor"
)

type stubCollector struct {
	stats collector.Stats
	err   error
}

func (s *stubCollector) Run(ctx context.Context, sources []feed.Source) (collector.Stats, error) {
	return s.stats, s.err
}

type stubProcessor struct {
	stats   processor.Stats
	err     error
	started chan struct{}
}

func (s *stubProcessor) Run(ctx context.Context) (processor.Stats, error) {
	if s.started != nil {
		close(s.started)
	}
	return s.stats, s.err
}

func newTestServer(c CollectRunner, p ProcessRunner) (*Server, *dispatch.AsyncDispatcher) {
	d := dispatch.NewAsyncDispatcher(p, time.Minute, slog.Default())
	return NewServer(c, p, d, []feed.Source{{Name: "test", URL: "http://example.com/rss"}}, slog.Default()), d
}

func TestCollectEndpoint(t *testing.T) {
	srv, _ := newTestServer(&stubCollector{stats: collector.Stats{Fetched: 5, Stored: 3, Skipped: 2}}, &stubProcessor{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("POST", "/api/collect", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Message string          `json:"message"`
		Stats   collector.Stats `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stats.Stored != 3 {
		t.Errorf("stats = %+v", resp.Stats)
	}
}

func TestCollectEndpoint_Failure(t *testing.T) {
	srv, _ := newTestServer(&stubCollector{err: errors.New("all feeds down")}, &stubProcessor{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("POST", "/api/collect", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] == "" {
		t.Error("expected error detail in body")
	}
}

func TestProcessEndpoint(t *testing.T) {
	srv, _ := newTestServer(&stubCollector{}, &stubProcessor{stats: processor.Stats{Processed: 2, Notified: 2}})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("POST", "/api/process", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Stats processor.Stats `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stats.Notified != 2 {
		t.Errorf("stats = %+v", resp.Stats)
	}
}

func TestProcessAsyncEndpoint(t *testing.T) {
	proc := &stubProcessor{started: make(chan struct{})}
	srv, d := newTestServer(&stubCollector{}, proc)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("POST", "/api/process-async", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["process_id"] == "" {
		t.Error("expected process_id in 202 response")
	}

	select {
	case <-proc.started:
	case <-time.After(2 * time.Second):
		t.Fatal("background processing never started")
	}
	d.Wait()
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(&stubCollector{}, &stubProcessor{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/collect", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

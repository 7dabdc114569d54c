package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/agrivoice/internal/bus"
	"github.com/snarg/agrivoice/internal/config"
	"github.com/snarg/agrivoice/internal/watch"
)

type fakeWatcher struct{ stats watch.Stats }

func (f *fakeWatcher) Status() watch.Stats { return f.stats }

type fakePool struct{ processed, failed int64 }

func (f *fakePool) Stats() (int64, int64) { return f.processed, f.failed }

func testServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()
	cfg := &config.Config{HTTPAddr: ":0"}
	srv := NewServer(cfg, deps, "test", time.Now(), zerolog.Nop())
	ts := httptest.NewServer(srv.http.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthEndpoint(t *testing.T) {
	ts := testServer(t, Deps{
		Watcher: &fakeWatcher{stats: watch.Stats{Status: "watching"}},
	})

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Checks["database"] != "memory" {
		t.Errorf("database check = %q, want memory for nil store", body.Checks["database"])
	}
	if body.Checks["mqtt"] != "not_configured" {
		t.Errorf("mqtt check = %q", body.Checks["mqtt"])
	}
	if body.Checks["file_watcher"] != "watching" {
		t.Errorf("watcher check = %q", body.Checks["file_watcher"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := testServer(t, Deps{
		Watcher: &fakeWatcher{stats: watch.Stats{Status: "watching", FilesEmitted: 7}},
		Pool:    &fakePool{processed: 5, failed: 2},
	})

	resp, err := ts.Client().Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()

	var body StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Processed != 5 || body.Failed != 2 {
		t.Errorf("counts = %d/%d, want 5/2", body.Processed, body.Failed)
	}
	if body.Watcher == nil || body.Watcher.FilesEmitted != 7 {
		t.Errorf("watcher snapshot = %+v", body.Watcher)
	}
}

func TestTasksEndpoint(t *testing.T) {
	b := bus.New(16, zerolog.Nop())
	tracker := NewTracker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.Run(ctx, b)

	b.Publish("t1", "converting", "")
	b.Publish("t1", "done", "")
	b.Publish("t2", "failed", "conversion_failed: bad header")

	// Wait for the tracker to fold both tasks in.
	deadline := time.Now().Add(time.Second)
	for len(tracker.Tasks()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ts := testServer(t, Deps{Tracker: tracker})
	resp, err := ts.Client().Get(ts.URL + "/api/tasks")
	if err != nil {
		t.Fatalf("GET /api/tasks: %v", err)
	}
	defer resp.Body.Close()

	var tasks []bus.Event
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].TaskID != "t2" {
		t.Errorf("first task = %s, want most recent activity first", tasks[0].TaskID)
	}
	if tasks[1].State != "done" {
		t.Errorf("t1 latest state = %s, want done (not converting)", tasks[1].State)
	}
}

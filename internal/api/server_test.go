package api

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/visiona/framesync/internal/config"
	"github.com/visiona/framesync/internal/events"
	"github.com/visiona/framesync/internal/hostsync"
	"github.com/visiona/framesync/internal/pipelines"
	"github.com/visiona/framesync/internal/report"
)

func newTestServer(t *testing.T) (*Server, *pipelines.Manager, *events.Bus) {
	t.Helper()

	bus := events.New()
	manager := pipelines.NewManager(bus)
	err := manager.Apply(map[string]config.PipelineSpec{
		"depth": {
			Streams:   []string{"color", "depth"},
			Strategy:  "timestamp",
			Tolerance: "10ms",
		},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	t.Cleanup(manager.Stop)

	return NewServer(&Options{Manager: manager, EventBus: bus}), manager, bus
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)
	ts := httptest.NewServer(server.GetMux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	var health HealthData
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("status: got %q, want ok", health.Status)
	}
}

func TestListPipelines(t *testing.T) {
	server, _, _ := newTestServer(t)
	ts := httptest.NewServer(server.GetMux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/pipelines")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	var body struct {
		Pipelines []pipelines.Info `json:"pipelines"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Pipelines) != 1 || body.Pipelines[0].Name != "depth" {
		t.Errorf("unexpected pipelines: %+v", body.Pipelines)
	}
	if body.Pipelines[0].Strategy != "timestamp" {
		t.Errorf("strategy: got %q", body.Pipelines[0].Strategy)
	}
}

func TestPipelineStats(t *testing.T) {
	server, manager, _ := newTestServer(t)
	ts := httptest.NewServer(server.GetMux())
	defer ts.Close()

	// Produce one matched group.
	if err := manager.Ingest("depth", hostsync.Message{StreamID: "color", Sequence: 1}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if err := manager.Ingest("depth", hostsync.Message{StreamID: "depth", Sequence: 1, Timestamp: 2 * time.Millisecond}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/pipelines/depth/stats")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	var snap report.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if snap.Pipeline != "depth" || snap.Groups != 1 {
		t.Errorf("unexpected snapshot: pipeline=%q groups=%d", snap.Pipeline, snap.Groups)
	}
	if _, ok := snap.Pairs["color-depth"]; !ok {
		t.Errorf("missing pair stats: %+v", snap.Pairs)
	}
}

func TestPipelineStatsNotFound(t *testing.T) {
	server, _, _ := newTestServer(t)
	ts := httptest.NewServer(server.GetMux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/pipelines/missing/stats")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestSSEStreamsGroupEvents(t *testing.T) {
	server, manager, _ := newTestServer(t)
	ts := httptest.NewServer(server.GetMux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("content type: got %s", resp.Header.Get("Content-Type"))
	}

	// Trigger a group while the SSE connection is open.
	go func() {
		time.Sleep(100 * time.Millisecond)
		manager.Ingest("depth", hostsync.Message{StreamID: "color", Sequence: 1})
		manager.Ingest("depth", hostsync.Message{StreamID: "depth", Sequence: 1, Timestamp: time.Millisecond})
	}()

	deadline := time.After(5 * time.Second)
	lines := make(chan string, 32)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("SSE stream closed before group event arrived")
			}
			if strings.Contains(line, "group-synced") || strings.Contains(line, "group_id") {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for group event on SSE stream")
		}
	}
}

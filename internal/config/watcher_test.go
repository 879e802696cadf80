package config

import (
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPipelinesWatcher_ReloadsOnChange(t *testing.T) {
	path := writePipelines(t, `
[pipelines.depth]
streams = ["color", "depth"]
strategy = "sequence"
`)

	received := make(chan map[string]PipelineSpec, 1)
	watcher := WatchPipelines(
		path,
		func(specs map[string]PipelineSpec) { received <- specs },
		newTestLogger(),
		WithReloadDebounce(50*time.Millisecond),
	)

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	defer func() {
		if stopErr := watcher.Stop(); stopErr != nil {
			t.Errorf("watcher.Stop failed: %v", stopErr)
		}
	}()

	// Wait for watcher to initialize
	time.Sleep(100 * time.Millisecond)

	updated := `
[pipelines.depth]
streams = ["color", "depth", "nn"]
strategy = "timestamp"
tolerance = "17ms"
`
	if writeErr := os.WriteFile(path, []byte(updated), 0o644); writeErr != nil {
		t.Fatal(writeErr)
	}

	select {
	case specs := <-received:
		if len(specs["depth"].Streams) != 3 {
			t.Errorf("got %+v, want 3 streams", specs["depth"])
		}
		if specs["depth"].Strategy != "timestamp" {
			t.Errorf("strategy: got %q", specs["depth"].Strategy)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for pipelines reload")
	}
}

func TestPipelinesWatcher_ErrorHandlerOnBadFile(t *testing.T) {
	path := writePipelines(t, `
[pipelines.depth]
streams = ["color", "depth"]
`)

	errorReceived := make(chan error, 1)
	reloaded := make(chan map[string]PipelineSpec, 1)

	watcher := WatchPipelines(
		path,
		func(specs map[string]PipelineSpec) { reloaded <- specs },
		newTestLogger(),
		WithReloadDebounce(50*time.Millisecond),
		WithReloadErrorHandler(func(err error) { errorReceived <- err }),
	)

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	defer func() {
		if stopErr := watcher.Stop(); stopErr != nil {
			t.Errorf("watcher.Stop failed: %v", stopErr)
		}
	}()

	time.Sleep(100 * time.Millisecond)
	if writeErr := os.WriteFile(path, []byte("invalid toml [[["), 0o644); writeErr != nil {
		t.Fatal(writeErr)
	}

	select {
	case <-errorReceived:
		// Expected
	case <-reloaded:
		t.Fatal("reload handler should not be called on error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestPipelinesWatcher_StopSuppressesReloads(t *testing.T) {
	path := writePipelines(t, `
[pipelines.depth]
streams = ["color", "depth"]
`)

	var count atomic.Int32
	watcher := WatchPipelines(
		path,
		func(_ map[string]PipelineSpec) { count.Add(1) },
		newTestLogger(),
		WithReloadDebounce(50*time.Millisecond),
	)

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	time.Sleep(100 * time.Millisecond)

	if stopErr := watcher.Stop(); stopErr != nil {
		t.Fatal(stopErr)
	}

	if writeErr := os.WriteFile(path, []byte("[pipelines.other]\nstreams = [\"a\", \"b\"]\n"), 0o644); writeErr != nil {
		t.Fatal(writeErr)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected 0 reloads after stop, got %d", got)
	}
}

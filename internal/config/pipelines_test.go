package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/visiona/framesync/internal/hostsync"
)

func writePipelines(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipelines.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPipelines(t *testing.T) {
	path := writePipelines(t, `
[pipelines.depth]
streams = ["color", "depth", "nn"]
strategy = "timestamp"
tolerance = "17ms"
retention = "500ms"
max_buffered = 8

[pipelines.stereo]
streams = ["left", "right"]
strategy = "sequence"
`)

	specs, err := LoadPipelines(path)
	if err != nil {
		t.Fatalf("LoadPipelines failed: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 pipelines, got %d", len(specs))
	}

	depth := specs["depth"]
	if depth.Strategy != "timestamp" || depth.MaxBuffered != 8 {
		t.Errorf("unexpected depth spec: %+v", depth)
	}
	if len(depth.Streams) != 3 || depth.Streams[0] != "color" {
		t.Errorf("unexpected depth streams: %v", depth.Streams)
	}
	if specs["stereo"].Strategy != "sequence" {
		t.Errorf("unexpected stereo spec: %+v", specs["stereo"])
	}
}

func TestLoadPipelinesMissingFile(t *testing.T) {
	if _, err := LoadPipelines(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadPipelinesEmpty(t *testing.T) {
	path := writePipelines(t, "# no pipelines\n")
	if _, err := LoadPipelines(path); err == nil {
		t.Fatal("expected error for empty pipelines file")
	}
}

func TestPipelineSpecSyncConfig(t *testing.T) {
	spec := PipelineSpec{
		Streams:     []string{"color", "depth"},
		Strategy:    "timestamp",
		Tolerance:   "17ms",
		Retention:   "500ms",
		MaxBuffered: 4,
	}

	cfg, err := spec.SyncConfig()
	if err != nil {
		t.Fatalf("SyncConfig failed: %v", err)
	}
	if cfg.Strategy != hostsync.StrategyTimestamp {
		t.Errorf("strategy: got %q", cfg.Strategy)
	}
	if cfg.Tolerance != 17*time.Millisecond {
		t.Errorf("tolerance: got %s", cfg.Tolerance)
	}
	if cfg.Retention != 500*time.Millisecond {
		t.Errorf("retention: got %s", cfg.Retention)
	}
	if cfg.MaxBuffered != 4 {
		t.Errorf("max buffered: got %d", cfg.MaxBuffered)
	}
}

func TestPipelineSpecSyncConfigDefaultsToSequence(t *testing.T) {
	cfg, err := PipelineSpec{Streams: []string{"a", "b"}}.SyncConfig()
	if err != nil {
		t.Fatalf("SyncConfig failed: %v", err)
	}
	if cfg.Strategy != hostsync.StrategySequence {
		t.Errorf("strategy: got %q, want sequence", cfg.Strategy)
	}
}

func TestPipelineSpecSyncConfigBadDuration(t *testing.T) {
	_, err := PipelineSpec{
		Streams:   []string{"a", "b"},
		Strategy:  "timestamp",
		Tolerance: "17 milliseconds",
	}.SyncConfig()
	if err == nil {
		t.Fatal("expected error for malformed tolerance")
	}

	_, err = PipelineSpec{
		Streams:   []string{"a", "b"},
		Retention: "forever",
	}.SyncConfig()
	if err == nil {
		t.Fatal("expected error for malformed retention")
	}
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/visiona/framesync/internal/hostsync"
)

// PipelineSpec is the on-disk definition of one synchronization pipeline.
// Durations use Go duration strings ("17ms", "1.5s").
type PipelineSpec struct {
	Streams     []string `toml:"streams"`
	Strategy    string   `toml:"strategy"`
	Tolerance   string   `toml:"tolerance"`
	Retention   string   `toml:"retention"`
	MaxBuffered int      `toml:"max_buffered"`
}

// pipelinesFile is the TOML layout of the pipelines config file.
type pipelinesFile struct {
	Pipelines map[string]PipelineSpec `toml:"pipelines"`
}

// LoadPipelines reads pipeline definitions from a TOML file.
func LoadPipelines(path string) (map[string]PipelineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipelines file: %w", err)
	}

	var file pipelinesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pipelines file: %w", err)
	}
	if len(file.Pipelines) == 0 {
		return nil, fmt.Errorf("no pipelines defined in %s", path)
	}
	return file.Pipelines, nil
}

// SyncConfig converts the spec into a synchronizer configuration. Duration
// fields are parsed here so file errors surface before a pipeline starts.
func (s PipelineSpec) SyncConfig() (hostsync.Config, error) {
	cfg := hostsync.Config{
		Streams:     s.Streams,
		Strategy:    hostsync.Kind(s.Strategy),
		MaxBuffered: s.MaxBuffered,
	}
	if s.Strategy == "" {
		cfg.Strategy = hostsync.StrategySequence
	}

	if s.Tolerance != "" {
		d, err := time.ParseDuration(s.Tolerance)
		if err != nil {
			return hostsync.Config{}, fmt.Errorf("invalid tolerance %q: %w", s.Tolerance, err)
		}
		cfg.Tolerance = d
	}
	if s.Retention != "" {
		d, err := time.ParseDuration(s.Retention)
		if err != nil {
			return hostsync.Config{}, fmt.Errorf("invalid retention %q: %w", s.Retention, err)
		}
		cfg.Retention = d
	}
	return cfg, nil
}

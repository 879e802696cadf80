// Package pipelines runs the configured synchronization pipelines,
// routing ingested messages, driving periodic eviction sweeps, and
// rebuilding pipelines on configuration changes.
package pipelines

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/visiona/framesync/internal/config"
	"github.com/visiona/framesync/internal/events"
	"github.com/visiona/framesync/internal/hostsync"
	"github.com/visiona/framesync/internal/metrics"
	"github.com/visiona/framesync/internal/report"
)

// DefaultTickInterval drives the periodic eviction sweep. Half the
// default retention keeps staleness bounded without busy-looping.
const DefaultTickInterval = 250 * time.Millisecond

// Info summarizes one running pipeline.
type Info struct {
	Name     string         `json:"name"`
	Streams  []string       `json:"streams"`
	Strategy string         `json:"strategy"`
	Depths   map[string]int `json:"depths"`
}

type pipeline struct {
	name     string
	spec     config.PipelineSpec
	sync     *hostsync.Synchronizer
	reporter *report.Reporter
}

// Manager owns the running pipelines. All pipeline replacement goes
// through Apply so that every buffered message is drained before its
// synchronizer is discarded.
type Manager struct {
	mu           sync.RWMutex
	pipelines    map[string]*pipeline
	bus          *events.Bus
	logger       *slog.Logger
	tickInterval time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	started      bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTickInterval sets the eviction sweep interval.
func WithTickInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.tickInterval = d
	}
}

// NewManager creates a manager publishing to the given event bus.
func NewManager(bus *events.Bus, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		pipelines:    make(map[string]*pipeline),
		bus:          bus,
		logger:       slog.Default(),
		tickInterval: DefaultTickInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply reconciles the running pipelines against the given specs. New
// pipelines are created, removed ones are flushed and torn down, and
// changed ones are flushed and rebuilt. Unchanged pipelines keep their
// buffers and statistics. Returns the first error encountered; pipelines
// that applied cleanly stay applied.
func (m *Manager) Apply(specs map[string]config.PipelineSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error

	// Tear down pipelines that disappeared from the config.
	for name, p := range m.pipelines {
		if _, keep := specs[name]; keep {
			continue
		}
		m.flushLocked(p, "removed")
		metrics.DeletePipelineMetrics(name)
		delete(m.pipelines, name)
		m.logger.Info("Pipeline removed", "pipeline", name)
	}

	for name, spec := range specs {
		existing, ok := m.pipelines[name]
		if ok && specEqual(existing.spec, spec) {
			continue
		}

		cfg, err := spec.SyncConfig()
		if err != nil {
			m.logger.Error("Invalid pipeline config", "pipeline", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("pipeline %s: %w", name, err)
			}
			continue
		}

		p, err := m.buildLocked(name, spec, cfg)
		if err != nil {
			m.logger.Error("Failed to build pipeline", "pipeline", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("pipeline %s: %w", name, err)
			}
			continue
		}

		if ok {
			m.flushLocked(existing, "reload")
		}
		m.pipelines[name] = p
		m.logger.Info("Pipeline started",
			"pipeline", name, "streams", cfg.Streams, "strategy", cfg.Strategy)
	}
	return firstErr
}

// Ingest routes a message into the named pipeline.
func (m *Manager) Ingest(name string, msg hostsync.Message) error {
	m.mu.RLock()
	p, ok := m.pipelines[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown pipeline %q", name)
	}
	return p.sync.Ingest(msg)
}

// Snapshot returns the statistics snapshot for one pipeline.
func (m *Manager) Snapshot(name string) (report.Snapshot, error) {
	m.mu.RLock()
	p, ok := m.pipelines[name]
	m.mu.RUnlock()
	if !ok {
		return report.Snapshot{}, fmt.Errorf("unknown pipeline %q", name)
	}
	return p.reporter.Snapshot(), nil
}

// List returns summaries of all running pipelines.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.pipelines))
	for name, p := range m.pipelines {
		infos = append(infos, Info{
			Name:     name,
			Streams:  p.sync.Streams(),
			Strategy: string(p.sync.Strategy()),
			Depths:   p.sync.Depths(),
		})
	}
	return infos
}

// Start launches the eviction sweep goroutine.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.sweep()
	m.logger.Info("Pipeline manager started", "tick_interval", m.tickInterval)
}

// Stop flushes all pipelines and stops the sweep goroutine.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for name, p := range m.pipelines {
		m.flushLocked(p, "shutdown")
		delete(m.pipelines, name)
	}
	m.logger.Info("Pipeline manager stopped")
}

func (m *Manager) sweep() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.mu.RLock()
			for name, p := range m.pipelines {
				if err := p.sync.Tick(now); err != nil {
					m.logger.Warn("Tick failed", "pipeline", name, "error", err)
					continue
				}
				for stream, depth := range p.sync.Depths() {
					metrics.SetBufferDepth(name, stream, depth)
				}
			}
			m.mu.RUnlock()
		}
	}
}

func (m *Manager) buildLocked(name string, spec config.PipelineSpec, cfg hostsync.Config) (*pipeline, error) {
	reporter := report.New(name)
	s, err := hostsync.New(cfg,
		hostsync.WithLogger(m.logger.With("pipeline", name)),
		hostsync.WithEmitter(reporter),
		hostsync.WithEmitter(events.NewEmitter(m.bus, name)),
		hostsync.WithEmitter(metrics.NewEmitter(name)),
	)
	if err != nil {
		return nil, err
	}
	return &pipeline{name: name, spec: spec, sync: s, reporter: reporter}, nil
}

func (m *Manager) flushLocked(p *pipeline, reason string) {
	if err := p.sync.Flush(); err != nil {
		m.logger.Warn("Flush failed", "pipeline", p.name, "error", err)
	}
	m.bus.Publish(events.PipelineFlushedEvent{
		Pipeline:  p.name,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func specEqual(a, b config.PipelineSpec) bool {
	if a.Strategy != b.Strategy || a.Tolerance != b.Tolerance ||
		a.Retention != b.Retention || a.MaxBuffered != b.MaxBuffered {
		return false
	}
	if len(a.Streams) != len(b.Streams) {
		return false
	}
	for i := range a.Streams {
		if a.Streams[i] != b.Streams[i] {
			return false
		}
	}
	return true
}

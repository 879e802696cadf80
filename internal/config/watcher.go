package config

import (
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce spaces out reloads when saving the pipelines
// file produces a burst of filesystem events.
const DefaultReloadDebounce = 1500 * time.Millisecond

// PipelinesWatcher reloads the pipeline definitions file when it changes
// on disk and hands the freshly parsed specs to a reload callback. A file
// that fails to parse never reaches the callback, so the running
// pipelines are unaffected by a bad edit.
type PipelinesWatcher struct {
	path     string
	debounce time.Duration
	onReload func(map[string]PipelineSpec)
	onError  func(error)
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
	done     chan struct{}
}

// PipelinesWatcherOption configures a PipelinesWatcher.
type PipelinesWatcherOption func(*PipelinesWatcher)

// WithReloadDebounce overrides the reload debounce interval.
func WithReloadDebounce(d time.Duration) PipelinesWatcherOption {
	return func(w *PipelinesWatcher) {
		w.debounce = d
	}
}

// WithReloadErrorHandler registers a callback for definition files that
// fail to load.
func WithReloadErrorHandler(fn func(error)) PipelinesWatcherOption {
	return func(w *PipelinesWatcher) {
		w.onError = fn
	}
}

// WatchPipelines creates a watcher for the given pipelines file. The
// reload callback receives the parsed specs after every settled change.
func WatchPipelines(path string, onReload func(map[string]PipelineSpec), logger *slog.Logger, opts ...PipelinesWatcherOption) *PipelinesWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &PipelinesWatcher{
		path:     path,
		debounce: DefaultReloadDebounce,
		onReload: onReload,
		logger:   logger,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching the pipelines file.
func (w *PipelinesWatcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if addErr := fsw.Add(w.path); addErr != nil {
		fsw.Close()
		return addErr
	}
	w.fsw = fsw

	w.logger.Info("Watching pipeline definitions", "path", w.path, "debounce", w.debounce)
	go w.run()
	return nil
}

// Stop ends the watch. A reload still pending in the debounce window is
// discarded.
func (w *PipelinesWatcher) Stop() error {
	close(w.done)
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *PipelinesWatcher) run() {
	var pending *time.Timer
	var fire <-chan time.Time
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// Writes cover in-place edits; creates cover editors that
			// replace the file on save.
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.NewTimer(w.debounce)
			fire = pending.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Pipelines watcher error", "error", err)
		}
	}
}

func (w *PipelinesWatcher) reload() {
	specs, err := LoadPipelines(w.path)
	if err != nil {
		w.logger.Warn("Pipeline definitions failed to load, keeping current set",
			"path", w.path, "error", err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	w.logger.Info("Pipeline definitions changed", "pipelines", len(specs))
	w.onReload(specs)
}

package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visiona/framesync/cmd"
	"github.com/visiona/framesync/internal/api"
	"github.com/visiona/framesync/internal/config"
	"github.com/visiona/framesync/internal/events"
	"github.com/visiona/framesync/internal/logging"
	"github.com/visiona/framesync/internal/nats"
	"github.com/visiona/framesync/internal/pipelines"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Pipeline settings
	PipelinesConfigFile string `help:"Pipeline definitions file" default:"pipelines.toml" toml:"pipelines.config_file" env:"PIPELINES_CONFIG_FILE"`
	PipelinesTick       string `help:"Eviction sweep interval" default:"250ms" toml:"pipelines.tick_interval" env:"PIPELINES_TICK"`

	// NATS settings
	NatsEmbedded bool   `help:"Run an embedded NATS server" default:"true" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NatsPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`
	NatsURL      string `help:"External NATS server URL (ignored when embedded)" default:"nats://127.0.0.1:4222" toml:"nats.url" env:"NATS_URL"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingHostsync  string `help:"Synchronizer logging level" default:"info" toml:"logging.hostsync" env:"LOGGING_HOSTSYNC"`
	LoggingPipelines string `help:"Pipeline manager logging level" default:"info" toml:"logging.pipelines" env:"LOGGING_PIPELINES"`
	LoggingNats      string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"hostsync":  opts.LoggingHostsync,
				"pipelines": opts.LoggingPipelines,
				"nats":      opts.LoggingNats,
				"api":       opts.LoggingAPI,
			},
		})

		logger := logging.GetLogger("main")

		tickInterval, err := time.ParseDuration(opts.PipelinesTick)
		if err != nil {
			logger.Warn("Invalid tick interval, using default",
				"value", opts.PipelinesTick, "default", pipelines.DefaultTickInterval)
			tickInterval = pipelines.DefaultTickInterval
		}

		// Create event bus for in-process event handling
		eventBus := events.New()

		manager := pipelines.NewManager(eventBus,
			pipelines.WithLogger(logging.GetLogger("pipelines")),
			pipelines.WithTickInterval(tickInterval),
		)

		// Load pipeline definitions; the service still starts without them
		// so the watcher can pick them up later.
		specs, err := config.LoadPipelines(opts.PipelinesConfigFile)
		if err != nil {
			logger.Warn("Failed to load pipeline definitions",
				"path", opts.PipelinesConfigFile, "error", err)
		} else if applyErr := manager.Apply(specs); applyErr != nil {
			logger.Error("Failed to apply pipeline definitions", "error", applyErr)
		}

		// Watch the pipelines file for changes
		watcher := config.WatchPipelines(
			opts.PipelinesConfigFile,
			func(fresh map[string]config.PipelineSpec) {
				if applyErr := manager.Apply(fresh); applyErr != nil {
					logger.Error("Failed to apply reloaded pipelines", "error", applyErr)
				}
			},
			logging.GetLogger("pipelines"),
		)

		// NATS: optional embedded server, ingest bridge, and sync publisher
		natsLogger := logging.GetLogger("nats")
		var natsServer *nats.Server
		natsURL := opts.NatsURL
		if opts.NatsEmbedded {
			natsServer = nats.NewServer(nats.ServerOptions{
				Port:   opts.NatsPort,
				Logger: natsLogger,
			})
		}
		bridge := nats.NewBridge(natsURL, manager, natsLogger)
		publisher := nats.NewPublisher(natsURL, eventBus, natsLogger)

		server := api.NewServer(&api.Options{
			Manager:           manager,
			EventBus:          eventBus,
			PrometheusHandler: promhttp.Handler(),
		})

		hooks.OnStart(func() {
			if natsServer != nil {
				if startErr := natsServer.Start(); startErr != nil {
					logger.Error("Failed to start embedded NATS server", "error", startErr)
					os.Exit(1)
				}
				natsURL = natsServer.ClientURL()
				bridge = nats.NewBridge(natsURL, manager, natsLogger)
				publisher = nats.NewPublisher(natsURL, eventBus, natsLogger)
			}

			// NATS connectivity is non-fatal: the HTTP API keeps working
			if startErr := bridge.Start(); startErr != nil {
				logger.Warn("NATS ingest disabled", "error", startErr)
			}
			if startErr := publisher.Start(); startErr != nil {
				logger.Warn("NATS sync output disabled", "error", startErr)
			}

			manager.Start()

			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Failed to start pipelines watcher, hot-reload disabled", "error", startErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Error("Error stopping pipelines watcher", "error", stopErr)
			}

			// Stop ingest before flushing so no message arrives mid-drain
			bridge.Stop()
			manager.Stop()
			publisher.Stop()

			if natsServer != nil {
				natsServer.Stop()
			}
		})
	})

	cli.Root().Use = "framesync"
	cli.Root().AddCommand(cmd.CreateReplayCmd())
	cli.Root().AddCommand(cmd.CreateSimulateCmd())

	cli.Run()
}

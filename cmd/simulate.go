package cmd

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/visiona/framesync/internal/hostsync"
	"github.com/visiona/framesync/internal/logging"
	"github.com/visiona/framesync/internal/report"
)

// CreateSimulateCmd creates the simulate command.
func CreateSimulateCmd() *cobra.Command {
	var streams []string
	var strategy string
	var tolerance string
	var fps float64
	var count int
	var jitter string
	var shift string
	var dropRate float64
	var seed int64
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a synthetic multi-stream workload through a synchronizer",
		Long: `Generates synthetic per-stream messages at a fixed frame rate with optional ` +
			`timestamp jitter, a constant phase shift on the last stream, and random message ` +
			`loss, then reports the match/drop statistics. Useful for sizing tolerance before ` +
			`deploying a pipeline.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			loggingConfig := logging.Config{
				Level:  "warn",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("simulate")

			if fps <= 0 {
				return fmt.Errorf("fps must be positive, got %v", fps)
			}
			if dropRate < 0 || dropRate >= 1 {
				return fmt.Errorf("drop-rate must be in [0, 1), got %v", dropRate)
			}
			jitterDur, err := time.ParseDuration(jitter)
			if err != nil {
				return fmt.Errorf("invalid jitter %q: %w", jitter, err)
			}
			shiftDur, err := time.ParseDuration(shift)
			if err != nil {
				return fmt.Errorf("invalid shift %q: %w", shift, err)
			}

			cfg := hostsync.Config{
				Streams:  streams,
				Strategy: hostsync.Kind(strategy),
			}
			if tolerance != "" {
				d, tolErr := time.ParseDuration(tolerance)
				if tolErr != nil {
					return fmt.Errorf("invalid tolerance %q: %w", tolerance, tolErr)
				}
				cfg.Tolerance = d
			}

			reporter := report.New("simulate")
			sync, err := hostsync.New(cfg,
				hostsync.WithLogger(logger),
				hostsync.WithEmitter(reporter),
			)
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(seed))
			period := time.Duration(float64(time.Second) / fps)
			var generated, lost int

			for frame := 0; frame < count; frame++ {
				base := time.Duration(frame) * period
				for i, id := range streams {
					if dropRate > 0 && rng.Float64() < dropRate {
						lost++
						continue
					}
					ts := base
					if i == len(streams)-1 {
						ts += shiftDur
					}
					if jitterDur > 0 {
						ts += time.Duration(rng.Int63n(int64(2*jitterDur))) - jitterDur
					}
					if ts < 0 {
						ts = 0
					}
					msg := hostsync.Message{
						StreamID:  id,
						Sequence:  int64(frame),
						Timestamp: ts,
					}
					if ingestErr := sync.Ingest(msg); ingestErr != nil {
						logger.Warn("Message rejected",
							"stream", id, "sequence", frame, "error", ingestErr)
						continue
					}
					generated++
				}
			}

			if err := sync.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "simulated %d frames at %.1f fps (%d messages, %d lost in transit)\n",
				count, fps, generated, lost)
			printSummary(os.Stdout, reporter.Snapshot(), generated, 0)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&streams, "streams", []string{"color", "depth", "nn"},
		"Participating stream IDs")
	cmd.Flags().StringVar(&strategy, "strategy", "timestamp", "Matching strategy (sequence, timestamp)")
	cmd.Flags().StringVar(&tolerance, "tolerance", "17ms", "Timestamp tolerance (timestamp strategy)")
	cmd.Flags().Float64Var(&fps, "fps", 30, "Frames per second per stream")
	cmd.Flags().IntVar(&count, "frames", 300, "Number of frames to generate")
	cmd.Flags().StringVar(&jitter, "jitter", "0ms", "Uniform timestamp jitter, e.g. 2ms")
	cmd.Flags().StringVar(&shift, "shift", "0ms", "Constant phase shift applied to the last stream")
	cmd.Flags().Float64Var(&dropRate, "drop-rate", 0, "Probability a message is lost before ingest")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

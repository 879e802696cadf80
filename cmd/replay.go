// Package cmd provides the auxiliary framesync subcommands.
package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/visiona/framesync/internal/hostsync"
	"github.com/visiona/framesync/internal/logging"
	"github.com/visiona/framesync/internal/report"
)

// TraceRecord is one line of a JSONL trace file.
type TraceRecord struct {
	Stream      string  `json:"stream"`
	Sequence    int64   `json:"sequence"`
	TimestampMs float64 `json:"timestamp_ms"`
}

// CreateReplayCmd creates the replay command.
func CreateReplayCmd() *cobra.Command {
	var streams []string
	var strategy string
	var tolerance string
	var retention string
	var maxBuffered int
	var logJSON bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "replay [trace-file]",
		Short: "Replay a recorded message trace through a synchronizer",
		Long: `Reads a JSONL trace file (one {"stream","sequence","timestamp_ms"} object ` +
			`per line) and feeds it through a synchronizer, printing every group and drop. ` +
			`Useful for tuning tolerance and retention against captured traffic.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			tracePath := args[0]

			loggingConfig := logging.Config{
				Level:  "warn",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("replay")

			cfg := hostsync.Config{
				Streams:     streams,
				Strategy:    hostsync.Kind(strategy),
				MaxBuffered: maxBuffered,
			}
			if tolerance != "" {
				d, err := time.ParseDuration(tolerance)
				if err != nil {
					return fmt.Errorf("invalid tolerance %q: %w", tolerance, err)
				}
				cfg.Tolerance = d
			}
			if retention != "" {
				d, err := time.ParseDuration(retention)
				if err != nil {
					return fmt.Errorf("invalid retention %q: %w", retention, err)
				}
				cfg.Retention = d
			}

			reporter := report.New("replay")
			printer := &tracePrinter{out: os.Stdout, quiet: quiet}
			sync, err := hostsync.New(cfg,
				hostsync.WithLogger(logger),
				hostsync.WithEmitter(reporter),
				hostsync.WithEmitter(printer),
			)
			if err != nil {
				return err
			}

			file, err := os.Open(tracePath)
			if err != nil {
				return fmt.Errorf("failed to open trace: %w", err)
			}
			defer file.Close()

			var ingested, rejected int
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				var rec TraceRecord
				if err := json.Unmarshal(line, &rec); err != nil {
					return fmt.Errorf("malformed trace line %d: %w", ingested+rejected+1, err)
				}
				msg := hostsync.Message{
					StreamID:  rec.Stream,
					Sequence:  rec.Sequence,
					Timestamp: time.Duration(rec.TimestampMs * float64(time.Millisecond)),
				}
				if err := sync.Ingest(msg); err != nil {
					logger.Warn("Message rejected",
						"stream", rec.Stream, "sequence", rec.Sequence, "error", err)
					rejected++
					continue
				}
				ingested++
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read trace: %w", err)
			}

			if err := sync.Flush(); err != nil {
				return err
			}
			printSummary(os.Stdout, reporter.Snapshot(), ingested, rejected)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&streams, "streams", []string{"color", "depth", "nn"},
		"Participating stream IDs")
	cmd.Flags().StringVar(&strategy, "strategy", "timestamp", "Matching strategy (sequence, timestamp)")
	cmd.Flags().StringVar(&tolerance, "tolerance", "17ms", "Timestamp tolerance (timestamp strategy)")
	cmd.Flags().StringVar(&retention, "retention", "", "Buffer retention, e.g. 500ms")
	cmd.Flags().IntVar(&maxBuffered, "max-buffered", 0, "Per-stream buffer cap (0 = unbounded)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress per-group and per-drop output")

	return cmd
}

// tracePrinter writes groups and drops as they happen.
type tracePrinter struct {
	out   *os.File
	quiet bool
}

func (p *tracePrinter) OnGroup(g hostsync.Group) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "group %s spread=%s\n", g.ID, g.Spread)
	for id, m := range g.Messages {
		fmt.Fprintf(p.out, "  %-12s seq=%-6d ts=%s\n", id, m.Sequence, m.Timestamp)
	}
}

func (p *tracePrinter) OnDrop(d hostsync.Drop) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "drop  %-12s seq=%-6d ts=%s reason=%s\n",
		d.Message.StreamID, d.Message.Sequence, d.Message.Timestamp, d.Reason)
}

func printSummary(out *os.File, snap report.Snapshot, ingested, rejected int) {
	fmt.Fprintf(out, "\n%d messages ingested, %d rejected, %d groups\n",
		ingested, rejected, snap.Groups)
	for id, st := range snap.Streams {
		fmt.Fprintf(out, "  %-12s matched=%-6d", id, st.Matched)
		for reason, n := range st.Dropped {
			fmt.Fprintf(out, " %s=%d", reason, n)
		}
		fmt.Fprintln(out)
	}
	for key, pair := range snap.Pairs {
		fmt.Fprintf(out, "  %-16s n=%-6d min=%-10s max=%-10s mean=%s\n",
			key, pair.Count, pair.Min, pair.Max, pair.Mean)
	}
}

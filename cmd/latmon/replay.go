package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/netqual/latmon/internal/logging"
	"github.com/netqual/latmon/internal/monitor"
	"github.com/netqual/latmon/internal/sample"
	"github.com/netqual/latmon/internal/sink"
	"github.com/netqual/latmon/internal/stats"
)

var flagReplayFiles []string

var replayCmd = &cobra.Command{
	Use:   "replay [raw-file]...",
	Short: "Rebuild summary and plots from recorded raw result files",
	Long: `Parse previously recorded ping_results_<target>.txt files, re-run
aggregation and segmentation, and render the summary table and plots
without probing anything. Timestamps are reconstructed from the file's
modification time and the probe interval it was recorded with.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		paths := append(flagReplayFiles, args...)
		if len(paths) == 0 {
			return fmt.Errorf("no raw result files given")
		}
		return executeReplay(paths)
	},
}

func executeReplay(paths []string) error {
	runID := uuid.NewString()

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, level, monitor.Interactive())

	var (
		targets  []*sample.TargetResult
		runStart time.Time
		runEnd   time.Time
	)

	for _, path := range paths {
		tr, start, end, err := replayFile(path, cfg.ProbeInterval)
		if err != nil {
			return err
		}
		log.Info("replayed raw file", "path", path, "target", tr.Target, "samples", len(tr.Samples))

		targets = append(targets, tr)
		if runStart.IsZero() || start.Before(runStart) {
			runStart = start
		}
		if end.After(runEnd) {
			runEnd = end
		}
	}

	span := runEnd.Sub(runStart)
	if cfg.AggregationEnabled() && span >= time.Minute {
		for _, tr := range targets {
			tr.Buckets = stats.Aggregate(tr.Samples, tr.Target, runStart,
				cfg.AggregationInterval, cfg.Method())
		}
	}

	res := &sample.RunResult{
		ID:      runID,
		Start:   runStart,
		End:     runEnd,
		Targets: targets,
	}

	out, err := sink.New(cfg.ResultsDir, cfg.PlotsDir, runID, runStart, log)
	if err != nil {
		return err
	}
	finishRun(res, out, "")
	return nil
}

// replayFile parses one raw artifact. The target comes from the file
// name; timestamps are synthesized backwards from the modification time.
func replayFile(path string, interval time.Duration) (*sample.TargetResult, time.Time, time.Time, error) {
	target, ok := sink.TargetFromPath(path)
	if !ok {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("%s: cannot derive target from file name", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}

	samples, err := sample.ReadResultsFile(path, target, time.Time{}, interval)
	if err != nil {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("%s: no samples", path)
	}

	end := info.ModTime()
	start := end.Add(-time.Duration(len(samples)) * interval)
	for i := range samples {
		samples[i].Timestamp = start.Add(time.Duration(samples[i].Seq) * interval)
	}

	return &sample.TargetResult{Target: target, Samples: samples}, start, end, nil
}

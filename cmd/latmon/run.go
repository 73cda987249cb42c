package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/netqual/latmon/internal/config"
	"github.com/netqual/latmon/internal/logging"
	"github.com/netqual/latmon/internal/monitor"
	"github.com/netqual/latmon/internal/probe"
	"github.com/netqual/latmon/internal/runner"
	"github.com/netqual/latmon/internal/sample"
	"github.com/netqual/latmon/internal/sink"
)

// exitCode is the process exit status: 0 when every target completed,
// 2 when some did, 1 when none did or setup failed.
var exitCode int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a monitoring run",
	Long: `Probe every configured target once per interval for the configured
duration. Raw results stream to disk while the run is live; the summary
and plots are written when it ends.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		return executeRun()
	},
}

func executeRun() error {
	runID := uuid.NewString()

	logFile, logPath, err := logging.OpenFile(cfg.LogDir, runID[:8])
	if err != nil {
		return err
	}
	defer logFile.Close()

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logging.New(logFile, level, false)

	prober, err := newProber(cfg)
	if err != nil {
		return err
	}
	defer prober.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out, err := sink.New(cfg.ResultsDir, cfg.PlotsDir, runID, time.Now(), log)
	if err != nil {
		return err
	}

	opts := runner.Options{
		Targets:       cfg.Targets,
		Duration:      cfg.Duration,
		ProbeInterval: cfg.ProbeInterval,
		AggMethod:     cfg.Method(),
		NewRecorder:   out.OpenRecorder,
		Logger:        log,
	}
	if cfg.AggregationEnabled() {
		opts.AggWindow = cfg.AggregationInterval
	}

	r, err := runner.New(prober, opts)
	if err != nil {
		return err
	}

	log.Info("run starting",
		"id", runID,
		"targets", cfg.Targets,
		"duration", cfg.Duration,
		"interval", cfg.ProbeInterval,
		"backend", cfg.Backend,
		"aggregation", cfg.AggregationEnabled(),
	)

	results := make(chan *sample.RunResult, 1)
	go func() { results <- r.Run(ctx) }()

	mopts := monitor.Options{Duration: cfg.Duration, Threshold: cfg.LatencyThreshold}
	if !flagPlain && monitor.Interactive() {
		if err := monitor.NewLive(r, mopts).Run(cancel); err != nil {
			log.Error("monitor failed", "error", err)
		}
	} else {
		monitor.NewPlain(r, mopts, os.Stderr).Run()
	}

	res := <-results
	log.Info("writing artifacts", "id", runID, "outcome", res.Outcome().String())

	finishRun(res, out, logPath)
	return nil
}

// finishRun writes the post-run artifacts and maps the outcome to the
// exit code.
func finishRun(res *sample.RunResult, out *sink.Sink, logPath string) {
	sink.WriteSummary(os.Stdout, res)

	if !flagNoPlots {
		popts := sink.PlotOptions{
			Threshold:   cfg.LatencyThreshold,
			SegmentSpan: cfg.SegmentSpan(),
			AggMethod:   cfg.Method(),
		}
		if err := out.WritePlots(res, popts); err != nil {
			fmt.Fprintf(os.Stderr, "plot rendering failed: %v\n", err)
		} else {
			fmt.Printf("\nplots:   %s\n", out.PlotsDir())
		}
	}
	if _, err := os.Stat(out.ResultsDir()); err == nil {
		fmt.Printf("results: %s\n", out.ResultsDir())
	}
	if logPath != "" {
		fmt.Printf("log:     %s\n", logPath)
	}

	switch res.Outcome() {
	case sample.OutcomeSuccess:
		exitCode = 0
	case sample.OutcomePartial:
		exitCode = 2
	default:
		exitCode = 1
	}
}

func newProber(cfg config.Config) (probe.Prober, error) {
	switch cfg.Backend {
	case "icmp":
		return probe.NewICMP(probe.ICMPConfig{
			Bind4:      "0.0.0.0",
			Bind6:      "::",
			Privileged: cfg.Privileged,
		})
	case "exec":
		return probe.NewExec(), nil
	}
	return nil, fmt.Errorf("unknown probe backend %q", cfg.Backend)
}

// latmon probes a set of network targets for a fixed duration, shows a
// live latency view while doing so, and leaves raw result files, a
// summary table and latency plots behind.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/netqual/latmon/internal/config"
)

const defaultConfigPath = "latmon.yaml"

var (
	cfgPath string
	cfg     config.Config

	// flag targets; merged over the config file in loadConfig
	flagTargets        []string
	flagDuration       time.Duration
	flagInterval       time.Duration
	flagAggInterval    time.Duration
	flagMethod         string
	flagThreshold      float64
	flagNoAggregation  bool
	flagNoSegmentation bool
	flagBackend        string
	flagPrivileged     bool
	flagPlain          bool
	flagNoPlots        bool

	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "latmon",
	Short: "Network latency monitor",
	Long: `latmon sends periodic probes to one or more targets, tracks latency and
packet loss live, and stores the raw time series plus plots per run.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("latmon %s (commit: %s)\n", version, commit)
	},
}

var regenConfigCmd = &cobra.Command{
	Use:   "regen-config",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgPath); err == nil {
			return fmt.Errorf("%s already exists, refusing to overwrite", cfgPath)
		}
		if err := config.Write(cfgPath, config.Default()); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", cfgPath)
		return nil
	},
}

// loadConfig resolves the effective configuration: defaults, then the
// config file, then explicit command-line flags.
func loadConfig(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("target") {
		cfg.Targets = flagTargets
	}
	if cmd.Flags().Changed("duration") {
		cfg.Duration = flagDuration
	}
	if cmd.Flags().Changed("probe-interval") {
		cfg.ProbeInterval = flagInterval
	}
	if cmd.Flags().Changed("aggregation-interval") {
		cfg.AggregationInterval = flagAggInterval
	}
	if cmd.Flags().Changed("method") {
		cfg.AggregationMethod = flagMethod
	}
	if cmd.Flags().Changed("threshold") {
		cfg.LatencyThreshold = flagThreshold
	}
	if cmd.Flags().Changed("no-aggregation") {
		cfg.NoAggregation = flagNoAggregation
	}
	if cmd.Flags().Changed("no-segmentation") {
		cfg.NoSegmentation = flagNoSegmentation
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = flagBackend
	}
	if cmd.Flags().Changed("privileged") {
		cfg.Privileged = flagPrivileged
	}

	return cfg.Validate()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath, "Path to the YAML configuration file")

	for _, cmd := range []*cobra.Command{runCmd, replayCmd} {
		cmd.Flags().StringSliceVarP(&flagTargets, "target", "t", nil, "Target host or IP (repeatable)")
		cmd.Flags().DurationVar(&flagAggInterval, "aggregation-interval", config.DefaultAggregationInterval, "Width of one aggregation window")
		cmd.Flags().StringVar(&flagMethod, "method", "mean", "Aggregation method (mean, median, min, max)")
		cmd.Flags().Float64Var(&flagThreshold, "threshold", config.DefaultLatencyThreshold, "High-latency threshold in milliseconds")
		cmd.Flags().BoolVar(&flagNoAggregation, "no-aggregation", false, "Disable latency aggregation")
		cmd.Flags().BoolVar(&flagNoSegmentation, "no-segmentation", false, "Render one plot per target instead of hourly segments")
		cmd.Flags().BoolVar(&flagNoPlots, "no-plots", false, "Skip plot rendering")
	}

	runCmd.Flags().DurationVarP(&flagDuration, "duration", "d", config.DefaultDuration, "Total monitoring duration")
	runCmd.Flags().DurationVarP(&flagInterval, "probe-interval", "i", config.DefaultProbeInterval, "Delay between probes per target")
	runCmd.Flags().StringVar(&flagBackend, "backend", "exec", "Probe backend (icmp, exec)")
	runCmd.Flags().BoolVar(&flagPrivileged, "privileged", false, "Use raw ICMP sockets (requires privileges)")
	runCmd.Flags().BoolVar(&flagPlain, "plain", false, "Force the plain progress renderer")

	replayCmd.Flags().DurationVarP(&flagInterval, "probe-interval", "i", config.DefaultProbeInterval, "Probe interval the raw file was recorded with")
	replayCmd.Flags().StringSliceVarP(&flagReplayFiles, "file", "f", nil, "Raw result file to replay (repeatable)")

	clearCmd.Flags().BoolVar(&flagClearResults, "results", false, "Clear the results directory")
	clearCmd.Flags().BoolVar(&flagClearPlots, "plots", false, "Clear the plots directory")
	clearCmd.Flags().BoolVar(&flagClearLogs, "logs", false, "Clear the log directory")
	clearCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Skip the confirmation prompt")

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(regenConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// Package config resolves the run configuration from the YAML config file
// and command-line overrides. The pipeline itself only ever sees the final
// validated Config value.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/netqual/latmon/internal/stats"
)

// Defaults mirror a three-hour monitoring session against a well-known
// public resolver.
const (
	DefaultDuration            = 3 * time.Hour
	DefaultProbeInterval       = time.Second
	DefaultAggregationInterval = time.Minute
	DefaultLatencyThreshold    = 200.0 // ms

	// minAggregationDuration force-disables aggregation for short runs:
	// there is nothing meaningful to reduce below one window.
	minAggregationDuration = time.Minute
)

// Config is the resolved, immutable run configuration.
type Config struct {
	Targets             []string      `yaml:"targets"`
	Duration            time.Duration `yaml:"duration"`
	ProbeInterval       time.Duration `yaml:"probe_interval"`
	AggregationInterval time.Duration `yaml:"aggregation_interval"`
	AggregationMethod   string        `yaml:"aggregation_method"`
	LatencyThreshold    float64       `yaml:"latency_threshold"` // ms
	NoAggregation       bool          `yaml:"no_aggregation"`
	NoSegmentation      bool          `yaml:"no_segmentation"`

	// Backend selects the probe primitive: "icmp" (native sockets) or
	// "exec" (system ping, no privileges needed).
	Backend    string `yaml:"probe_backend"`
	Privileged bool   `yaml:"privileged"`

	ResultsDir string `yaml:"results_dir"`
	PlotsDir   string `yaml:"plots_dir"`
	LogDir     string `yaml:"log_dir"`
	LogLevel   string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Targets:             []string{"8.8.8.8"},
		Duration:            DefaultDuration,
		ProbeInterval:       DefaultProbeInterval,
		AggregationInterval: DefaultAggregationInterval,
		AggregationMethod:   "mean",
		LatencyThreshold:    DefaultLatencyThreshold,
		Backend:             "exec",
		ResultsDir:          "results",
		PlotsDir:            "plots",
		LogDir:              "logs",
		LogLevel:            "info",
	}
}

// duration accepts either a bare number (seconds) or a Go duration
// string in YAML, so `duration: 10800` and `duration: 3h` both work.
type duration time.Duration

func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	var secs int64
	if err := node.Decode(&secs); err == nil {
		*d = duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = duration(parsed)
	return nil
}

func (d duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML decodes via a shadow struct so the duration fields accept
// both numeric seconds and duration strings.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type shadow struct {
		Targets             []string `yaml:"targets"`
		Duration            duration `yaml:"duration"`
		ProbeInterval       duration `yaml:"probe_interval"`
		AggregationInterval duration `yaml:"aggregation_interval"`
		AggregationMethod   string   `yaml:"aggregation_method"`
		LatencyThreshold    float64  `yaml:"latency_threshold"`
		NoAggregation       bool     `yaml:"no_aggregation"`
		NoSegmentation      bool     `yaml:"no_segmentation"`
		Backend             string   `yaml:"probe_backend"`
		Privileged          bool     `yaml:"privileged"`
		ResultsDir          string   `yaml:"results_dir"`
		PlotsDir            string   `yaml:"plots_dir"`
		LogDir              string   `yaml:"log_dir"`
		LogLevel            string   `yaml:"log_level"`
	}
	sh := shadow{
		Targets:             c.Targets,
		Duration:            duration(c.Duration),
		ProbeInterval:       duration(c.ProbeInterval),
		AggregationInterval: duration(c.AggregationInterval),
		AggregationMethod:   c.AggregationMethod,
		LatencyThreshold:    c.LatencyThreshold,
		NoAggregation:       c.NoAggregation,
		NoSegmentation:      c.NoSegmentation,
		Backend:             c.Backend,
		Privileged:          c.Privileged,
		ResultsDir:          c.ResultsDir,
		PlotsDir:            c.PlotsDir,
		LogDir:              c.LogDir,
		LogLevel:            c.LogLevel,
	}
	if err := node.Decode(&sh); err != nil {
		return err
	}
	*c = Config{
		Targets:             sh.Targets,
		Duration:            time.Duration(sh.Duration),
		ProbeInterval:       time.Duration(sh.ProbeInterval),
		AggregationInterval: time.Duration(sh.AggregationInterval),
		AggregationMethod:   sh.AggregationMethod,
		LatencyThreshold:    sh.LatencyThreshold,
		NoAggregation:       sh.NoAggregation,
		NoSegmentation:      sh.NoSegmentation,
		Backend:             sh.Backend,
		Privileged:          sh.Privileged,
		ResultsDir:          sh.ResultsDir,
		PlotsDir:            sh.PlotsDir,
		LogDir:              sh.LogDir,
		LogLevel:            sh.LogLevel,
	}
	return nil
}

// MarshalYAML renders the duration fields as human-readable strings.
func (c Config) MarshalYAML() (interface{}, error) {
	type shadow struct {
		Targets             []string `yaml:"targets"`
		Duration            duration `yaml:"duration"`
		ProbeInterval       duration `yaml:"probe_interval"`
		AggregationInterval duration `yaml:"aggregation_interval"`
		AggregationMethod   string   `yaml:"aggregation_method"`
		LatencyThreshold    float64  `yaml:"latency_threshold"`
		NoAggregation       bool     `yaml:"no_aggregation"`
		NoSegmentation      bool     `yaml:"no_segmentation"`
		Backend             string   `yaml:"probe_backend"`
		Privileged          bool     `yaml:"privileged"`
		ResultsDir          string   `yaml:"results_dir"`
		PlotsDir            string   `yaml:"plots_dir"`
		LogDir              string   `yaml:"log_dir"`
		LogLevel            string   `yaml:"log_level"`
	}
	return shadow{
		Targets:             c.Targets,
		Duration:            duration(c.Duration),
		ProbeInterval:       duration(c.ProbeInterval),
		AggregationInterval: duration(c.AggregationInterval),
		AggregationMethod:   c.AggregationMethod,
		LatencyThreshold:    c.LatencyThreshold,
		NoAggregation:       c.NoAggregation,
		NoSegmentation:      c.NoSegmentation,
		Backend:             c.Backend,
		Privileged:          c.Privileged,
		ResultsDir:          c.ResultsDir,
		PlotsDir:            c.PlotsDir,
		LogDir:              c.LogDir,
		LogLevel:            c.LogLevel,
	}, nil
}

// Load reads the YAML config file at path, merged over the defaults. A
// missing file is not an error: the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Write dumps cfg as YAML to path, creating parent directories as needed.
func Write(path string, cfg Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := dirOf(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, raw, 0o644)
}

func dirOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return ""
}

// Validate checks the configuration before any probing starts. Validation
// failures are configuration-class: the run never begins.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target must be specified")
	}
	seen := make(map[string]struct{}, len(c.Targets))
	for _, t := range c.Targets {
		if err := validateTarget(t); err != nil {
			return err
		}
		// targets form a set: a duplicate would probe twice and write
		// both streams to the same raw result file
		if _, dup := seen[t]; dup {
			return fmt.Errorf("duplicate target %q", t)
		}
		seen[t] = struct{}{}
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe interval must be positive")
	}
	if c.ProbeInterval > c.Duration {
		return fmt.Errorf("probe interval must not exceed the duration")
	}
	if c.AggregationInterval <= 0 {
		return fmt.Errorf("aggregation interval must be positive")
	}
	if c.LatencyThreshold <= 0 {
		return fmt.Errorf("latency threshold must be positive")
	}
	if _, err := stats.ParseMethod(c.AggregationMethod); err != nil {
		return err
	}
	switch c.Backend {
	case "icmp", "exec":
	default:
		return fmt.Errorf("unknown probe backend %q", c.Backend)
	}
	return nil
}

// validateTarget accepts IPv4/IPv6 literals and plausible hostnames.
func validateTarget(t string) error {
	if t == "" {
		return fmt.Errorf("empty target")
	}
	if net.ParseIP(t) != nil {
		return nil
	}
	// hostname shape only; resolution is checked when the stream starts
	if strings.ContainsAny(t, " \t/") || strings.HasPrefix(t, ".") {
		return fmt.Errorf("invalid target %q", t)
	}
	return nil
}

// Method returns the parsed aggregation method. Call after Validate.
func (c *Config) Method() stats.Method {
	m, _ := stats.ParseMethod(c.AggregationMethod)
	return m
}

// AggregationEnabled applies the short-run rule: runs under one minute
// have aggregation force-disabled regardless of the no_aggregation flag.
func (c *Config) AggregationEnabled() bool {
	if c.Duration < minAggregationDuration {
		return false
	}
	return !c.NoAggregation
}

// SegmentSpan is the wall-clock span of one output segment; zero when
// segmentation is disabled, meaning a single segment spans the whole run.
func (c *Config) SegmentSpan() time.Duration {
	if c.NoSegmentation {
		return 0
	}
	return stats.DefaultSegmentSpan
}

package runner

import (
	"errors"
	"fmt"
)

// Error taxonomy of a run. Per-target errors are isolated and recorded on
// that target's stream; only configuration errors before the run starts,
// or total failure of all targets, abort the run.
var (
	// ErrCancelled finalizes streams of an interrupted run. Data captured
	// before the interrupt is preserved.
	ErrCancelled = errors.New("run cancelled")

	// ErrEmptyResult marks a stream that reached completion without
	// producing a single sample.
	ErrEmptyResult = errors.New("no samples recorded")
)

// ConfigError is a configuration-class failure: an unresolvable target or
// invalid run parameters. It is fatal before any probing starts; for a
// single target it fails only that stream.
type ConfigError struct {
	Target string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration: target %s: %v", e.Target, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ProbeError marks a stream whose probe primitive could not operate at
// all, as opposed to individual lost packets.
type ProbeError struct {
	Target string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe: target %s: %v", e.Target, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

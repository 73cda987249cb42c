// Package sample holds the data model of the latency pipeline: normalized
// probe outcomes, aggregation buckets and the final run result.
package sample

import "time"

// Sample is the normalized outcome of a single probe attempt. It is
// immutable once created; a lost packet carries no latency value.
type Sample struct {
	Target    string
	Timestamp time.Time
	Seq       int     // attempt ordinal, increasing per target
	RTT       float64 // round-trip time in milliseconds
	Lost      bool
}

// Latency returns the round-trip time in milliseconds and whether the
// attempt was answered at all.
func (s Sample) Latency() (float64, bool) {
	if s.Lost {
		return 0, false
	}
	return s.RTT, true
}

// Bucket is the reduction of all samples of one target whose timestamps
// fall into [WindowStart, WindowEnd). Valid is false when every sample in
// the window was lost, in which case Value is meaningless.
type Bucket struct {
	Target      string
	WindowStart time.Time
	WindowEnd   time.Time
	Value       float64 // milliseconds
	Valid       bool
	LossCount   int
	SampleCount int
}

// TargetResult collects everything the run produced for one target.
// Buckets is empty when aggregation was disabled. Err records the failure
// of this stream, if any; successful targets of a partially failed run
// still carry their full data.
type TargetResult struct {
	Target  string
	Samples []Sample
	Buckets []Bucket
	Err     error
}

// PacketLoss returns the loss percentage over all recorded samples.
func (t *TargetResult) PacketLoss() float64 {
	if len(t.Samples) == 0 {
		return 0
	}
	lost := 0
	for _, s := range t.Samples {
		if s.Lost {
			lost++
		}
	}
	return float64(lost) / float64(len(t.Samples)) * 100
}

// Failed reports whether this target's stream ended in a failure.
func (t *TargetResult) Failed() bool { return t.Err != nil }

// Outcome classifies a finished run for exit-code mapping.
type Outcome int

const (
	// OutcomeSuccess means every target completed.
	OutcomeSuccess Outcome = iota
	// OutcomePartial means at least one target completed and at least one failed.
	OutcomePartial
	// OutcomeFailure means every target failed, or the run produced nothing.
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial success"
	default:
		return "failure"
	}
}

// RunResult is the terminal artifact of a monitoring run, assembled once
// after all probe streams reached a terminal state.
type RunResult struct {
	ID      string
	Start   time.Time
	End     time.Time
	Targets []*TargetResult // in configuration order
}

// Outcome derives the overall run outcome from the per-target results.
func (r *RunResult) Outcome() Outcome {
	if r == nil || len(r.Targets) == 0 {
		return OutcomeFailure
	}
	completed, failed := 0, 0
	for _, t := range r.Targets {
		if t.Failed() {
			failed++
		} else {
			completed++
		}
	}
	switch {
	case completed == 0:
		return OutcomeFailure
	case failed > 0:
		return OutcomePartial
	default:
		return OutcomeSuccess
	}
}

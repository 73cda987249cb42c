// Package stats reduces ordered sample sequences into time-windowed
// aggregates and display-sized segments.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/netqual/latmon/internal/sample"
)

// Method selects the reduction applied to the non-lost samples of a window.
type Method int

const (
	Mean Method = iota
	Median
	Min
	Max
)

func (m Method) String() string {
	switch m {
	case Mean:
		return "mean"
	case Median:
		return "median"
	case Min:
		return "min"
	case Max:
		return "max"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod maps a configuration string to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "mean", "":
		return Mean, nil
	case "median":
		return Median, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	default:
		return Mean, fmt.Errorf("unknown aggregation method %q", s)
	}
}

// Aggregator buckets an ordered sample sequence for one target into
// fixed-duration windows aligned to the start of the run. It works
// incrementally: a bucket is closed as soon as a sample's timestamp passes
// the window's end, so aggregates are available while the run is live.
type Aggregator struct {
	target string
	start  time.Time
	window time.Duration
	method Method

	closed  []sample.Bucket
	current []sample.Sample
	curIdx  int64 // window index of current; -1 before the first sample
}

// NewAggregator creates an Aggregator with run-start-aligned windows.
// window must be positive.
func NewAggregator(target string, start time.Time, window time.Duration, method Method) *Aggregator {
	return &Aggregator{
		target: target,
		start:  start,
		window: window,
		method: method,
		curIdx: -1,
	}
}

// Add feeds the next sample, closing any windows its timestamp has passed.
// Samples must arrive in timestamp order per target.
func (a *Aggregator) Add(s sample.Sample) {
	idx := a.index(s.Timestamp)
	if a.curIdx < 0 {
		a.curIdx = idx
	}
	for idx > a.curIdx {
		a.closeCurrent()
		a.curIdx++
	}
	a.current = append(a.current, s)
}

// Buckets returns the windows closed so far. The returned slice must not
// be mutated.
func (a *Aggregator) Buckets() []sample.Bucket {
	return a.closed
}

// Flush closes the still-open window and returns the complete bucket
// sequence. Call once, after the stream has reached a terminal state; data
// collected before a cancellation is preserved.
func (a *Aggregator) Flush() []sample.Bucket {
	if len(a.current) > 0 {
		a.closeCurrent()
		a.curIdx++
	}
	return a.closed
}

func (a *Aggregator) index(ts time.Time) int64 {
	return int64(ts.Sub(a.start) / a.window)
}

func (a *Aggregator) closeCurrent() {
	ws := a.start.Add(time.Duration(a.curIdx) * a.window)
	b := sample.Bucket{
		Target:      a.target,
		WindowStart: ws,
		WindowEnd:   ws.Add(a.window),
		SampleCount: len(a.current),
	}

	values := make([]float64, 0, len(a.current))
	for _, s := range a.current {
		if rtt, ok := s.Latency(); ok {
			values = append(values, rtt)
		} else {
			b.LossCount++
		}
	}

	if len(values) > 0 {
		b.Value = reduce(a.method, values)
		b.Valid = true
	}

	a.closed = append(a.closed, b)
	a.current = a.current[:0]
}

// Aggregate reduces a complete sample sequence in one go. It is the batch
// form of the incremental Aggregator and yields the identical bucket
// sequence for the same input.
func Aggregate(samples []sample.Sample, target string, start time.Time, window time.Duration, method Method) []sample.Bucket {
	a := NewAggregator(target, start, window, method)
	for _, s := range samples {
		a.Add(s)
	}
	return a.Flush()
}

// reduce applies the method over values. values must be non-empty; the
// median of an even-sized set is the midpoint of the two central values.
func reduce(method Method, values []float64) float64 {
	switch method {
	case Median:
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)
		n := len(sorted)
		if n%2 == 0 {
			return (sorted[n/2-1] + sorted[n/2]) / 2
		}
		return sorted[n/2]
	case Min:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case Max:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	default: // Mean
		total := 0.0
		for _, v := range values {
			total += v
		}
		return total / float64(len(values))
	}
}

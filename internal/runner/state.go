package runner

import (
	"sync"

	"github.com/netqual/latmon/internal/sample"
	"github.com/netqual/latmon/internal/stats"
)

// State is the lifecycle of one probe stream. Completed and Failed are
// terminal; no transition leaves a terminal state.
type State int

const (
	Pending State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the stream has finished, successfully or not.
func (s State) Terminal() bool { return s == Completed || s == Failed }

// stream is the per-target state. The owning worker is the only writer;
// the monitor and the sink read consistent snapshots under the lock.
type stream struct {
	target string

	mtx     sync.RWMutex
	state   State
	samples []sample.Sample
	agg     *stats.Aggregator // nil when aggregation is disabled
	err     error
}

func newStream(target string, agg *stats.Aggregator) *stream {
	return &stream{target: target, agg: agg}
}

// setAggregator installs the live aggregator once the run start is known.
func (st *stream) setAggregator(agg *stats.Aggregator) {
	st.mtx.Lock()
	st.agg = agg
	st.mtx.Unlock()
}

func (st *stream) run() {
	st.mtx.Lock()
	st.state = Running
	st.mtx.Unlock()
}

// fail moves the stream to its terminal Failed state. The first error
// wins; fail on an already terminal stream is a no-op.
func (st *stream) fail(err error) {
	st.mtx.Lock()
	if !st.state.Terminal() {
		st.state = Failed
		st.err = err
	}
	st.mtx.Unlock()
}

func (st *stream) complete() {
	st.mtx.Lock()
	if !st.state.Terminal() {
		if len(st.samples) == 0 {
			st.state = Failed
			st.err = ErrEmptyResult
		} else {
			st.state = Completed
		}
	}
	st.mtx.Unlock()
}

// add appends the sample emitted for one attempt and feeds the live
// aggregator.
func (st *stream) add(s sample.Sample) {
	st.mtx.Lock()
	st.samples = append(st.samples, s)
	if st.agg != nil {
		st.agg.Add(s)
	}
	st.mtx.Unlock()
}

// Snapshot is a consistent, monitor-facing view of one stream.
type Snapshot struct {
	Target  string
	State   State
	Emitted int
	Lost    int
	Last    sample.Sample // zero value until the first attempt
	Recent  []float64     // latest latencies, zero for lost packets
	Err     error
}

// snapshot copies the fields the live monitor renders. recentMax bounds
// the chart window so the copy stays cheap at long durations.
func (st *stream) snapshot(recentMax int) Snapshot {
	st.mtx.RLock()
	defer st.mtx.RUnlock()

	snap := Snapshot{
		Target:  st.target,
		State:   st.state,
		Emitted: len(st.samples),
		Err:     st.err,
	}
	if n := len(st.samples); n > 0 {
		snap.Last = st.samples[n-1]
		lo := n - recentMax
		if lo < 0 {
			lo = 0
		}
		snap.Recent = make([]float64, 0, n-lo)
		for _, s := range st.samples[lo:] {
			rtt, _ := s.Latency()
			snap.Recent = append(snap.Recent, rtt)
		}
	}
	for _, s := range st.samples {
		if s.Lost {
			snap.Lost++
		}
	}
	return snap
}

// result assembles the stream's contribution to the RunResult. Open
// aggregation windows are flushed with whatever samples they hold.
func (st *stream) result() *sample.TargetResult {
	st.mtx.Lock()
	defer st.mtx.Unlock()

	res := &sample.TargetResult{
		Target:  st.target,
		Samples: st.samples,
		Err:     st.err,
	}
	if st.agg != nil {
		res.Buckets = st.agg.Flush()
	}
	return res
}

// Package runner launches and supervises one concurrent probe stream per
// target and assembles the terminal run result.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/netqual/latmon/internal/probe"
	"github.com/netqual/latmon/internal/sample"
	"github.com/netqual/latmon/internal/stats"
)

// recentWindow bounds the per-stream latency history handed out in
// snapshots; the live chart never shows more points than this.
const recentWindow = 120

// Options configure a run. The pipeline receives them fully resolved; it
// never reads configuration files itself.
type Options struct {
	Targets       []string
	Duration      time.Duration
	ProbeInterval time.Duration
	Timeout       time.Duration // per attempt; defaults to ProbeInterval

	// AggWindow of zero disables live aggregation.
	AggWindow time.Duration
	AggMethod stats.Method

	// NewRecorder, when set, opens the raw result artifact for a target.
	NewRecorder func(target string) (*sample.Recorder, error)

	// Resolve defaults to probe.Resolve.
	Resolve func(ctx context.Context, host string) (*probe.Target, error)

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Runner drives one worker goroutine per target. Each stream is
// independent: failure or delay on one target never blocks another.
type Runner struct {
	opts    Options
	prober  probe.Prober
	clock   clockwork.Clock
	log     *slog.Logger
	streams []*stream

	mtx   sync.RWMutex // guards start against monitor reads
	start time.Time
	done  chan struct{}
}

// New validates the options and prepares one stream per target.
func New(prober probe.Prober, opts Options) (*Runner, error) {
	if len(opts.Targets) == 0 {
		return nil, &ConfigError{Err: fmt.Errorf("no targets")}
	}
	if opts.Duration <= 0 {
		return nil, &ConfigError{Err: fmt.Errorf("duration must be positive")}
	}
	if opts.ProbeInterval <= 0 || opts.ProbeInterval > opts.Duration {
		return nil, &ConfigError{Err: fmt.Errorf("probe interval must be positive and at most the duration")}
	}
	if opts.Timeout <= 0 || opts.Timeout > opts.ProbeInterval {
		opts.Timeout = opts.ProbeInterval
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Resolve == nil {
		opts.Resolve = probe.Resolve
	}

	streams := make([]*stream, len(opts.Targets))
	seen := make(map[string]struct{}, len(opts.Targets))
	for i, target := range opts.Targets {
		if _, dup := seen[target]; dup {
			return nil, &ConfigError{Target: target, Err: fmt.Errorf("duplicate target")}
		}
		seen[target] = struct{}{}
		streams[i] = newStream(target, nil)
	}

	return &Runner{
		opts:    opts,
		prober:  prober,
		clock:   opts.Clock,
		log:     opts.Logger,
		streams: streams,
		done:    make(chan struct{}),
	}, nil
}

// Done is closed once every stream has reached a terminal state and the
// run result is assembled.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Elapsed reports how much of the run duration has passed.
func (r *Runner) Elapsed() time.Duration {
	r.mtx.RLock()
	start := r.start
	r.mtx.RUnlock()

	if start.IsZero() {
		return 0
	}
	if e := r.clock.Since(start); e < r.opts.Duration {
		return e
	}
	return r.opts.Duration
}

// Progress reports run completion in [0, 1].
func (r *Runner) Progress() float64 {
	select {
	case <-r.done:
		return 1
	default:
	}
	return float64(r.Elapsed()) / float64(r.opts.Duration)
}

// Snapshots returns a consistent view of every stream without blocking
// any worker.
func (r *Runner) Snapshots() []Snapshot {
	snaps := make([]Snapshot, len(r.streams))
	for i, st := range r.streams {
		snaps[i] = st.snapshot(recentWindow)
	}
	return snaps
}

// Run starts all probe streams and blocks until every one of them reaches
// a terminal state. Cancellation finalizes each live stream as failed with
// a cancellation error; samples captured up to that point are kept. The
// returned result is complete even for partially failed runs.
func (r *Runner) Run(ctx context.Context) *sample.RunResult {
	r.mtx.Lock()
	r.start = r.clock.Now()
	r.mtx.Unlock()

	if r.opts.AggWindow > 0 {
		for _, st := range r.streams {
			st.setAggregator(stats.NewAggregator(st.target, r.start, r.opts.AggWindow, r.opts.AggMethod))
		}
	}

	var g errgroup.Group
	for _, st := range r.streams {
		st := st
		g.Go(func() error {
			r.work(ctx, st)
			return nil // per-target errors are isolated on the stream
		})
	}
	g.Wait()

	res := &sample.RunResult{
		ID:      uuid.NewString(),
		Start:   r.start,
		End:     r.clock.Now(),
		Targets: make([]*sample.TargetResult, len(r.streams)),
	}
	for i, st := range r.streams {
		res.Targets[i] = st.result()
	}

	close(r.done)
	r.log.Info("run finished",
		"outcome", res.Outcome().String(),
		"targets", len(res.Targets),
		"elapsed", res.End.Sub(res.Start))
	return res
}

// work drives a single probe stream to its terminal state.
func (r *Runner) work(ctx context.Context, st *stream) {
	log := r.log.With("target", st.target)

	tgt, err := r.opts.Resolve(ctx, st.target)
	if err != nil {
		log.Error("stream failed to start", "err", err)
		st.fail(&ConfigError{Target: st.target, Err: err})
		return
	}
	st.run()

	var rec *sample.Recorder
	if r.opts.NewRecorder != nil {
		rec, err = r.opts.NewRecorder(st.target)
		if err != nil {
			log.Error("stream failed to start", "err", err)
			st.fail(&ProbeError{Target: st.target, Err: err})
			return
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Warn("closing raw results", "err", err)
			}
		}()
	}

	deadline := r.start.Add(r.opts.Duration)
	ticker := r.clock.NewTicker(r.opts.ProbeInterval)
	defer ticker.Stop()

	for seqn := 0; r.clock.Now().Before(deadline); seqn++ {
		if !r.attempt(ctx, st, tgt, rec, seqn) {
			st.fail(fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx)))
			return
		}

		select {
		case <-ctx.Done():
			st.fail(fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx)))
			return
		case <-ticker.Chan():
		}
	}

	st.complete()
	log.Debug("stream completed")
}

// attempt issues one probe and emits exactly one sample for it. It
// returns false when the run was cancelled mid-attempt, in which case no
// sample is emitted.
func (r *Runner) attempt(ctx context.Context, st *stream, tgt *probe.Target, rec *sample.Recorder, seqn int) bool {
	ts := r.clock.Now()
	rtt, err := r.prober.Probe(ctx, tgt, r.opts.Timeout)
	if err != nil && ctx.Err() != nil {
		return false
	}

	s := sample.Sample{
		Target:    st.target,
		Timestamp: ts,
		Seq:       seqn,
		RTT:       float64(rtt) / float64(time.Millisecond),
		Lost:      err != nil,
	}
	st.add(s)

	if rec != nil {
		if recErr := rec.Record(s); recErr != nil {
			r.log.Warn("recording sample", "target", st.target, "err", recErr)
		}
	}
	if err != nil {
		r.log.Debug("packet lost", "target", st.target, "seq", seqn, "err", err)
	}
	return true
}

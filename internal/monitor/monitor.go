// Package monitor renders live run progress. Interactive terminals get a
// full-screen tview UI with per-target latency charts; everything else
// falls back to a plain progress bar on stderr.
package monitor

import (
	"os"
	"time"

	"golang.org/x/term"

	"github.com/netqual/latmon/internal/runner"
)

// Source is the monitor's read-only view of a running measurement. It is
// satisfied by *runner.Runner; every method must be safe to call while
// probing is in flight.
type Source interface {
	Elapsed() time.Duration
	Progress() float64
	Snapshots() []runner.Snapshot
	Done() <-chan struct{}
}

// Options control rendering. Threshold is in milliseconds; latencies at
// or above it are highlighted.
type Options struct {
	Duration  time.Duration
	Threshold float64
	Refresh   time.Duration // default 1s
}

func (o *Options) refresh() time.Duration {
	if o.Refresh > 0 {
		return o.Refresh
	}
	return time.Second
}

// Interactive reports whether stdout is a terminal.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// chartArea sizes the per-target chart from the terminal. asciigraph
// adds the y-axis labels on top of the plot width, hence the margin.
func chartArea() (width, height int) {
	cols, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || cols < 30 {
		return chartWidth, chartHeight
	}
	return cols - 14, chartHeight
}

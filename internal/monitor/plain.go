package monitor

import (
	"io"
	"time"

	pb "gopkg.in/cheggaaa/pb.v1"
)

// Plain is the non-interactive renderer: a single progress bar plus
// nothing else, suitable for pipes and CI logs.
type Plain struct {
	src  Source
	opts Options
	out  io.Writer
}

func NewPlain(src Source, opts Options, out io.Writer) *Plain {
	return &Plain{src: src, opts: opts, out: out}
}

// Run updates the bar until the run finishes. It never stops the run
// itself; cancellation in plain mode comes from signals.
func (p *Plain) Run() {
	total := int64(p.opts.Duration / time.Second)
	if total <= 0 {
		total = 1
	}

	bar := pb.New64(total)
	bar.Output = p.out
	bar.ShowCounters = false
	bar.ShowTimeLeft = true
	bar.SetRefreshRate(p.opts.refresh())
	bar.Start()
	defer bar.Finish()

	ticker := time.NewTicker(p.opts.refresh())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			bar.Set64(int64(p.src.Elapsed() / time.Second))
		case <-p.src.Done():
			bar.Set64(total)
			return
		}
	}
}

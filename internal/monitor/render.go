package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/guptarohit/asciigraph"

	"github.com/netqual/latmon/internal/runner"
)

const (
	chartHeight = 8
	chartWidth  = 70

	// displayCap keeps a single latency spike from flattening the rest
	// of the chart. Display only; stored samples are never capped.
	displayCap = 800.0
)

// Chart plots recent latencies as an ASCII graph. Lost probes arrive as
// zeroes and show up as dips to the baseline, which makes outages
// visible without a second series. Values are capped at displayCap.
func Chart(series []float64, width, height int) string {
	if len(series) < 2 {
		return "waiting for samples..."
	}
	if width <= 0 {
		width = chartWidth
	}
	if height <= 0 {
		height = chartHeight
	}

	capped := make([]float64, len(series))
	for i, v := range series {
		if v > displayCap {
			v = displayCap
		}
		capped[i] = v
	}
	return asciigraph.Plot(capped,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(1),
	)
}

// StatusLine summarizes one stream for the header row above its chart.
func StatusLine(snap runner.Snapshot, threshold float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  [%s]", snap.Target, snap.State)

	if snap.Emitted > 0 {
		loss := float64(snap.Lost) / float64(snap.Emitted) * 100
		if snap.Last.Lost {
			b.WriteString("  last: lost")
		} else {
			fmt.Fprintf(&b, "  last: %.1fms", snap.Last.RTT)
		}
		fmt.Fprintf(&b, "  sent: %d  loss: %.1f%%", snap.Emitted, loss)
		if !snap.Last.Lost && snap.Last.RTT >= threshold {
			fmt.Fprintf(&b, "  HIGH LATENCY (>= %.0fms)", threshold)
		}
	}
	if snap.Err != nil {
		fmt.Fprintf(&b, "  error: %v", snap.Err)
	}
	return b.String()
}

// ProgressLine renders a bar with elapsed/total and a percentage,
// clamped so a final tick can never report more than 100%.
func ProgressLine(elapsed, total time.Duration, progress float64) string {
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}
	if elapsed > total {
		elapsed = total
	}

	const barWidth = 40
	filled := int(progress * barWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat("-", barWidth-filled)

	return fmt.Sprintf("[%s]  %s / %s  (%.0f%%)",
		bar, elapsed.Truncate(time.Second), total, progress*100)
}

// exceeded reports whether the most recent latency crossed the threshold.
func exceeded(snap runner.Snapshot, threshold float64) bool {
	return snap.Emitted > 0 && !snap.Last.Lost && snap.Last.RTT >= threshold
}

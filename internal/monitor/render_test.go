package monitor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/netqual/latmon/internal/runner"
	"github.com/netqual/latmon/internal/sample"
)

func TestChart(t *testing.T) {
	assert.Equal(t, "waiting for samples...", Chart(nil, 0, 0))
	assert.Equal(t, "waiting for samples...", Chart([]float64{12.5}, 0, 0))

	out := Chart([]float64{10, 12, 9, 0, 14, 11}, 40, 5)
	lines := strings.Split(out, "\n")
	assert.GreaterOrEqual(t, len(lines), 5)
	assert.Contains(t, out, "14.0", "y axis should carry the max latency")
}

func TestChartCapsSpikes(t *testing.T) {
	out := Chart([]float64{10, 12, 5000, 11}, 40, 5)
	assert.Contains(t, out, "800.0", "spikes are clamped to the display cap")
	assert.NotContains(t, out, "5000")
}

func TestStatusLine(t *testing.T) {
	snap := runner.Snapshot{
		Target:  "8.8.8.8",
		State:   runner.Running,
		Emitted: 10,
		Lost:    2,
		Last:    sample.Sample{Target: "8.8.8.8", RTT: 12.3},
	}

	line := StatusLine(snap, 200)
	assert.Contains(t, line, "8.8.8.8")
	assert.Contains(t, line, "last: 12.3ms")
	assert.Contains(t, line, "sent: 10")
	assert.Contains(t, line, "loss: 20.0%")
	assert.NotContains(t, line, "HIGH LATENCY")

	snap.Last.RTT = 250
	assert.Contains(t, StatusLine(snap, 200), "HIGH LATENCY")

	snap.Last = sample.Sample{Lost: true}
	assert.Contains(t, StatusLine(snap, 200), "last: lost")
}

func TestStatusLineError(t *testing.T) {
	snap := runner.Snapshot{
		Target: "nohost.invalid",
		State:  runner.Failed,
		Err:    assert.AnError,
	}
	line := StatusLine(snap, 200)
	assert.Contains(t, line, "failed")
	assert.Contains(t, line, assert.AnError.Error())
}

func TestProgressLine(t *testing.T) {
	line := ProgressLine(90*time.Second, 3*time.Minute, 0.5)
	assert.Contains(t, line, "1m30s")
	assert.Contains(t, line, "3m0s")
	assert.Contains(t, line, "(50%)")
	assert.Contains(t, line, strings.Repeat("=", 20)+strings.Repeat("-", 20))

	// clamped past the end
	line = ProgressLine(4*time.Minute, 3*time.Minute, 1.2)
	assert.Contains(t, line, "(100%)")
	assert.NotContains(t, line, "4m")
}

func TestExceeded(t *testing.T) {
	snap := runner.Snapshot{Emitted: 1, Last: sample.Sample{RTT: 199.9}}
	assert.False(t, exceeded(snap, 200))

	snap.Last.RTT = 200
	assert.True(t, exceeded(snap, 200))

	snap.Last = sample.Sample{Lost: true}
	assert.False(t, exceeded(snap, 200), "lost probes have no latency to compare")
}

package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netqual/latmon/internal/sample"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// seq builds a sample sequence at 1s cadence starting at t0. A negative
// rtt marks a lost packet.
func seq(target string, rtts ...float64) []sample.Sample {
	samples := make([]sample.Sample, len(rtts))
	for i, rtt := range rtts {
		samples[i] = sample.Sample{
			Target:    target,
			Timestamp: t0.Add(time.Duration(i) * time.Second),
			Seq:       i,
			RTT:       rtt,
			Lost:      rtt < 0,
		}
	}
	return samples
}

func TestParseMethod(t *testing.T) {
	assert := assert.New(t)

	for in, want := range map[string]Method{
		"": Mean, "mean": Mean, "median": Median, "min": Min, "max": Max,
	} {
		got, err := ParseMethod(in)
		assert.NoError(err, in)
		assert.Equal(want, got, in)
	}

	_, err := ParseMethod("p99")
	assert.Error(err)
}

func TestAggregateWindows(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	// 10 samples, 4s windows -> buckets of 4, 4 and 2
	samples := seq("t", 10, 20, -1, 30, 40, -1, -1, 50, 60, 70)
	buckets := Aggregate(samples, "t", t0, 4*time.Second, Mean)
	require.Len(buckets, 3)

	assert.Equal(t0, buckets[0].WindowStart)
	assert.Equal(t0.Add(4*time.Second), buckets[0].WindowEnd)
	assert.Equal(4, buckets[0].SampleCount)
	assert.Equal(1, buckets[0].LossCount)
	assert.True(buckets[0].Valid)
	assert.Equal(20.0, buckets[0].Value)

	assert.Equal(4, buckets[1].SampleCount)
	assert.Equal(2, buckets[1].LossCount)
	assert.Equal(45.0, buckets[1].Value)

	assert.Equal(2, buckets[2].SampleCount)
	assert.Equal(0, buckets[2].LossCount)
	assert.Equal(65.0, buckets[2].Value)

	// invariant: losses plus answered samples account for every sample
	for _, b := range buckets {
		answered := 0
		for _, s := range samples {
			if !s.Timestamp.Before(b.WindowStart) && s.Timestamp.Before(b.WindowEnd) && !s.Lost {
				answered++
			}
		}
		assert.Equal(b.SampleCount, b.LossCount+answered)
	}
}

func TestAggregateAllLost(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	buckets := Aggregate(seq("t", -1, -1, -1), "t", t0, 3*time.Second, Mean)
	require.Len(buckets, 1)
	assert.False(buckets[0].Valid)
	assert.Equal(3, buckets[0].LossCount)
	assert.Equal(3, buckets[0].SampleCount)
}

func TestAggregateMethods(t *testing.T) {
	assert := assert.New(t)

	samples := seq("t", 40, 10, 30, 20)
	window := 10 * time.Second

	for method, want := range map[Method]float64{
		Mean:   25,
		Median: 25,
		Min:    10,
		Max:    40,
	} {
		buckets := Aggregate(samples, "t", t0, window, method)
		assert.Len(buckets, 1, method.String())
		assert.Equal(want, buckets[0].Value, method.String())
	}

	// odd-sized median
	buckets := Aggregate(seq("t", 40, 10, 30), "t", t0, window, Median)
	assert.Equal(30.0, buckets[0].Value)
}

func TestAggregateDeterministic(t *testing.T) {
	assert := assert.New(t)

	samples := seq("t", 12.5, -1, 13, 14.25, -1, 12, 15, 13.5)
	first := Aggregate(samples, "t", t0, 3*time.Second, Median)
	for i := 0; i < 5; i++ {
		assert.Equal(first, Aggregate(samples, "t", t0, 3*time.Second, Median))
	}
}

func TestAggregatorIncremental(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	samples := seq("t", 10, 20, 30, 40, 50, 60)
	window := 2 * time.Second

	a := NewAggregator("t", t0, window, Mean)

	// nothing closes until a timestamp passes a window end
	a.Add(samples[0])
	a.Add(samples[1])
	assert.Empty(a.Buckets())

	a.Add(samples[2])
	require.Len(a.Buckets(), 1)
	assert.Equal(15.0, a.Buckets()[0].Value)

	for _, s := range samples[3:] {
		a.Add(s)
	}
	buckets := a.Flush()
	require.Len(buckets, 3)
	assert.Equal(buckets, Aggregate(samples, "t", t0, window, Mean))
}

func TestAggregatorGapEmitsEmptyWindows(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	a := NewAggregator("t", t0, time.Second, Mean)
	a.Add(sample.Sample{Target: "t", Timestamp: t0, RTT: 10})
	a.Add(sample.Sample{Target: "t", Timestamp: t0.Add(3 * time.Second), Seq: 1, RTT: 20})
	buckets := a.Flush()

	require.Len(buckets, 4)
	assert.True(buckets[0].Valid)
	assert.False(buckets[1].Valid)
	assert.Zero(buckets[1].SampleCount)
	assert.False(buckets[2].Valid)
	assert.True(buckets[3].Valid)
}

// Alternating success/loss over 120 samples with 60s windows: two buckets,
// each reducing 60 samples with half of them lost.
func TestAggregateAlternating(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rtts := make([]float64, 120)
	for i := range rtts {
		if i%2 == 0 {
			rtts[i] = 10
		} else {
			rtts[i] = -1
		}
	}
	buckets := Aggregate(seq("t", rtts...), "t", t0, time.Minute, Mean)
	require.Len(buckets, 2)
	for _, b := range buckets {
		assert.Equal(60, b.SampleCount)
		assert.Equal(30, b.LossCount)
		assert.InDelta(10.0, b.Value, 1e-9)
	}
}

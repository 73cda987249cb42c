package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netqual/latmon/internal/sample"
)

func TestSegmentSamplesRoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	// 2.5 hours of samples at 1min cadence
	var samples []sample.Sample
	for i := 0; i < 150; i++ {
		samples = append(samples, sample.Sample{
			Target:    "t",
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Seq:       i,
			RTT:       float64(i),
		})
	}

	segments := SegmentSamples(samples, t0, time.Hour)
	require.Len(segments, 3)
	assert.Len(segments[0], 60)
	assert.Len(segments[1], 60)
	assert.Len(segments[2], 30) // final partial segment

	// concatenating all segments reconstructs the input exactly
	var joined []sample.Sample
	for _, seg := range segments {
		joined = append(joined, seg...)
	}
	assert.Equal(samples, joined)
}

func TestSegmentSamplesDisabled(t *testing.T) {
	assert := assert.New(t)

	samples := seq("t", 1, 2, 3)
	segments := SegmentSamples(samples, t0, 0)
	assert.Len(segments, 1)
	assert.Equal(samples, segments[0])

	assert.Nil(SegmentSamples(nil, t0, time.Hour))
}

func TestSegmentBuckets(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var buckets []sample.Bucket
	for i := 0; i < 90; i++ {
		ws := t0.Add(time.Duration(i) * time.Minute)
		buckets = append(buckets, sample.Bucket{
			Target:      "t",
			WindowStart: ws,
			WindowEnd:   ws.Add(time.Minute),
			Value:       float64(i),
			Valid:       true,
			SampleCount: 60,
		})
	}

	segments := SegmentBuckets(buckets, t0, time.Hour)
	require.Len(segments, 2)
	assert.Len(segments[0], 60)
	assert.Len(segments[1], 30)

	var joined []sample.Bucket
	for _, seg := range segments {
		joined = append(joined, seg...)
	}
	assert.Equal(buckets, joined)
}

func TestSegmentLabel(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("entire_run", SegmentLabel(0, 1))
	assert.Equal("hour_1", SegmentLabel(0, 3))
	assert.Equal("hour_3", SegmentLabel(2, 3))
}

package stats

import (
	"fmt"
	"time"

	"github.com/netqual/latmon/internal/sample"
)

// DefaultSegmentSpan is the wall-clock span of one display segment.
const DefaultSegmentSpan = time.Hour

// SegmentSamples partitions an ordered sample sequence into non-overlapping
// segments of fixed wall-clock span, measured from the run start, plus a
// final partial segment. Purely a grouping operation: concatenating the
// segments in order reconstructs the input exactly. span <= 0 yields a
// single segment spanning the whole run.
func SegmentSamples(samples []sample.Sample, start time.Time, span time.Duration) [][]sample.Sample {
	if len(samples) == 0 {
		return nil
	}
	if span <= 0 {
		return [][]sample.Sample{samples}
	}

	var segments [][]sample.Sample
	lo := 0
	cur := samples[0].Timestamp.Sub(start) / span
	for i, s := range samples {
		idx := s.Timestamp.Sub(start) / span
		if idx != cur {
			segments = append(segments, samples[lo:i])
			lo, cur = i, idx
		}
	}
	return append(segments, samples[lo:])
}

// SegmentBuckets partitions a bucket sequence by window start, mirroring
// SegmentSamples.
func SegmentBuckets(buckets []sample.Bucket, start time.Time, span time.Duration) [][]sample.Bucket {
	if len(buckets) == 0 {
		return nil
	}
	if span <= 0 {
		return [][]sample.Bucket{buckets}
	}

	var segments [][]sample.Bucket
	lo := 0
	cur := buckets[0].WindowStart.Sub(start) / span
	for i, b := range buckets {
		idx := b.WindowStart.Sub(start) / span
		if idx != cur {
			segments = append(segments, buckets[lo:i])
			lo, cur = i, idx
		}
	}
	return append(segments, buckets[lo:])
}

// SegmentLabel names a segment for output files: "hour_1", "hour_2", ... or
// "entire_run" when segmentation is disabled.
func SegmentLabel(i, total int) string {
	if total <= 1 {
		return "entire_run"
	}
	return fmt.Sprintf("hour_%d", i+1)
}

package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/netqual/latmon/internal/sample"
	"github.com/netqual/latmon/internal/stats"
)

// PlotOptions control the rendered latency charts.
type PlotOptions struct {
	Threshold   float64       // ms; drawn as a dashed marker line
	SegmentSpan time.Duration // zero renders a single chart per target
	AggMethod   stats.Method  // label for the aggregate overlay
}

// WritePlots renders one PNG per target and segment: the raw latency
// series, the aggregated overlay when buckets exist, and the threshold
// line. Failed targets without samples are skipped.
func (s *Sink) WritePlots(res *sample.RunResult, opts PlotOptions) error {
	if err := os.MkdirAll(s.plotsDir, 0o755); err != nil {
		return fmt.Errorf("creating plots directory: %w", err)
	}

	for _, tr := range res.Targets {
		if len(tr.Samples) == 0 {
			continue
		}

		segments := stats.SegmentSamples(tr.Samples, res.Start, opts.SegmentSpan)
		bucketSegs := stats.SegmentBuckets(tr.Buckets, res.Start, opts.SegmentSpan)

		for i, seg := range segments {
			var buckets []sample.Bucket
			if i < len(bucketSegs) {
				buckets = bucketSegs[i]
			}

			label := stats.SegmentLabel(i, len(segments))
			name := fmt.Sprintf("latency_%s_%s.png", sanitize(tr.Target), label)
			path := filepath.Join(s.plotsDir, name)

			if err := renderPlot(path, tr.Target, label, seg, buckets, opts); err != nil {
				return fmt.Errorf("plotting %s/%s: %w", tr.Target, label, err)
			}
			s.log.Debug("wrote plot", "target", tr.Target, "segment", label, "path", path)
		}
	}
	return nil
}

func renderPlot(path, target, label string, samples []sample.Sample, buckets []sample.Bucket, opts PlotOptions) error {
	xs, ys := seriesOf(samples)
	if len(xs) < 2 {
		// go-chart cannot render a single-point series
		return nil
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name: target,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(0),
				StrokeWidth: 1.5,
			},
			XValues: xs,
			YValues: ys,
		},
	}

	if bx, by := bucketSeries(buckets); len(bx) >= 2 {
		series = append(series, chart.TimeSeries{
			Name: opts.AggMethod.String(),
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(1),
				StrokeWidth: 2.5,
			},
			XValues: bx,
			YValues: by,
		})
	}

	if opts.Threshold > 0 {
		series = append(series, chart.TimeSeries{
			Name: fmt.Sprintf("threshold (%.0fms)", opts.Threshold),
			Style: chart.Style{
				StrokeColor:     drawing.ColorRed,
				StrokeWidth:     1,
				StrokeDashArray: []float64{5, 5},
			},
			XValues: []time.Time{xs[0], xs[len(xs)-1]},
			YValues: []float64{opts.Threshold, opts.Threshold},
		})
	}

	graph := chart.Chart{
		Title:      fmt.Sprintf("Latency - %s (%s)", target, label),
		TitleStyle: chart.Style{FontSize: 14},
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		Width:  1200,
		Height: 400,
		XAxis: chart.XAxis{
			Name:           "Time",
			Style:          chart.Style{StrokeColor: drawing.ColorBlack, FontSize: 10},
			ValueFormatter: chart.TimeMinuteValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:  "Latency (ms)",
			Style: chart.Style{StrokeColor: drawing.ColorBlack, FontSize: 10},
			GridMajorStyle: chart.Style{
				StrokeColor: drawing.Color{R: 200, G: 200, B: 200, A: 255},
				StrokeWidth: 1.0,
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return graph.Render(chart.PNG, f)
}

// seriesOf extracts the answered probes; lost packets leave gaps in the
// x axis rather than plotting as zero.
func seriesOf(samples []sample.Sample) ([]time.Time, []float64) {
	xs := make([]time.Time, 0, len(samples))
	ys := make([]float64, 0, len(samples))
	for _, s := range samples {
		if rtt, ok := s.Latency(); ok {
			xs = append(xs, s.Timestamp)
			ys = append(ys, rtt)
		}
	}
	return xs, ys
}

// bucketSeries plots each valid bucket at its window midpoint.
func bucketSeries(buckets []sample.Bucket) ([]time.Time, []float64) {
	xs := make([]time.Time, 0, len(buckets))
	ys := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		if !b.Valid {
			continue
		}
		mid := b.WindowStart.Add(b.WindowEnd.Sub(b.WindowStart) / 2)
		xs = append(xs, mid)
		ys = append(ys, b.Value)
	}
	return xs, ys
}

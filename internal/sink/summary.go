package sink

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/netqual/latmon/internal/sample"
)

// WriteSummary renders the end-of-run table: one row per target with
// packet counts and latency extremes.
func WriteSummary(w io.Writer, res *sample.RunResult) {
	fmt.Fprintf(w, "\nrun %s  %s - %s  (%s)\n\n",
		shortID(res.ID),
		res.Start.Format("2006-01-02 15:04:05"),
		res.End.Format("15:04:05"),
		res.Outcome(),
	)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Target", "Sent", "Lost", "Loss", "Min", "Mean", "Max", "Status"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
	})

	targets := make([]*sample.TargetResult, len(res.Targets))
	copy(targets, res.Targets)
	sort.Slice(targets, func(i, j int) bool { return targets[i].Target < targets[j].Target })

	for _, tr := range targets {
		table.Append(summaryRow(tr))
	}
	table.Render()
}

func summaryRow(tr *sample.TargetResult) []string {
	status := "ok"
	if tr.Failed() {
		status = tr.Err.Error()
	}

	min, mean, max, lost, ok := latencyStats(tr.Samples)
	if !ok {
		return []string{tr.Target, fmt.Sprint(len(tr.Samples)), fmt.Sprint(lost),
			"-", "-", "-", "-", status}
	}
	return []string{
		tr.Target,
		fmt.Sprint(len(tr.Samples)),
		fmt.Sprint(lost),
		fmt.Sprintf("%.1f%%", tr.PacketLoss()),
		fmt.Sprintf("%.1fms", min),
		fmt.Sprintf("%.1fms", mean),
		fmt.Sprintf("%.1fms", max),
		status,
	}
}

func latencyStats(samples []sample.Sample) (min, mean, max float64, lost int, ok bool) {
	var sum float64
	var n int
	for _, s := range samples {
		rtt, got := s.Latency()
		if !got {
			lost++
			continue
		}
		if n == 0 || rtt < min {
			min = rtt
		}
		if rtt > max {
			max = rtt
		}
		sum += rtt
		n++
	}
	if n == 0 {
		return 0, 0, 0, lost, false
	}
	return min, sum / float64(n), max, lost, true
}

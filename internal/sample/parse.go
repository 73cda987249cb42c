package sample

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Raw result files carry one line per probe attempt: the round-trip time in
// milliseconds, or a loss marker. An optional trailer summarizes the packet
// loss for the whole file.
const (
	lossLine      = "Lost"
	trailerPrefix = "# packet loss:"
)

// lossMarkers are the textual forms the probe primitives emit for an
// unanswered attempt.
var lossMarkers = []string{
	"lost",
	"timeout",
	"timed out",
	"unreachable",
	"no reply",
	"no answer",
	"error",
}

// ErrUnexpectedLine marks a raw line that was neither a round-trip time nor
// a known loss marker. The attempt is still recorded as a loss; the error
// is advisory and never fails a stream.
var ErrUnexpectedLine = fmt.Errorf("unexpected line format")

// ParseLine classifies one raw attempt line into a Sample. The boolean is
// false for lines carrying no attempt at all (blank lines, trailers).
// Unclassifiable lines degrade to a loss sample and additionally return
// ErrUnexpectedLine for the caller to log.
func ParseLine(target string, seq int, ts time.Time, line string) (Sample, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Sample{}, false, nil
	}

	s := Sample{Target: target, Timestamp: ts, Seq: seq}

	if rtt, err := strconv.ParseFloat(line, 64); err == nil && rtt >= 0 {
		s.RTT = rtt
		return s, true, nil
	}

	s.Lost = true
	if isLossMarker(line) {
		return s, true, nil
	}
	return s, true, fmt.Errorf("%w: %q", ErrUnexpectedLine, line)
}

func isLossMarker(line string) bool {
	lower := strings.ToLower(line)
	for _, m := range lossMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// ReadResults reconstructs the sample sequence of one target from a saved
// raw result file. Raw files carry no timestamps, so instants are
// synthesized from the run start and the probe interval; the pipeline
// downstream of parsing is identical for live and replayed streams.
func ReadResults(r io.Reader, target string, start time.Time, interval time.Duration) ([]Sample, error) {
	var samples []Sample
	seq := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		ts := start.Add(time.Duration(seq) * interval)
		s, ok, _ := ParseLine(target, seq, ts, scanner.Text())
		if !ok {
			continue
		}
		samples = append(samples, s)
		seq++
	}
	if err := scanner.Err(); err != nil {
		return samples, fmt.Errorf("reading results: %w", err)
	}
	return samples, nil
}

// ReadResultsFile is ReadResults over a file path.
func ReadResultsFile(path, target string, start time.Time, interval time.Duration) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadResults(f, target, start, interval)
}

// Recorder appends raw attempt lines to a writer, producing the durable
// time-series artifact of one probe stream.
type Recorder struct {
	w       io.Writer
	c       io.Closer
	written int
	lost    int
}

// NewRecorder wraps w. If w is also an io.Closer, Close will close it.
func NewRecorder(w io.Writer) *Recorder {
	rec := &Recorder{w: w}
	if c, ok := w.(io.Closer); ok {
		rec.c = c
	}
	return rec
}

// Record writes the raw line for one sample.
func (r *Recorder) Record(s Sample) error {
	r.written++
	if s.Lost {
		r.lost++
		_, err := fmt.Fprintln(r.w, lossLine)
		return err
	}
	_, err := fmt.Fprintf(r.w, "%g\n", s.RTT)
	return err
}

// Close writes the packet-loss trailer and closes the underlying file.
func (r *Recorder) Close() error {
	if r.written > 0 {
		loss := float64(r.lost) / float64(r.written) * 100
		if _, err := fmt.Fprintf(r.w, "%s %.2f%%\n", trailerPrefix, loss); err != nil {
			return err
		}
	}
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}

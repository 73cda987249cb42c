// Package sink owns everything the run leaves on disk: the per-target raw
// result files written while probing, the summary table, and the latency
// plots rendered after the run.
package sink

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/netqual/latmon/internal/sample"
)

const rawPrefix = "ping_results_"

// Sink writes run artifacts below a per-run directory pair. Results and
// plots are separated so raw data can be kept while plots are regenerated.
type Sink struct {
	resultsDir string
	plotsDir   string
	log        *slog.Logger
}

// New names the per-run result and plot directories; the start time comes
// first so listings sort chronologically. Both directories are created
// lazily, so a replay or an aborted setup never leaves empty ones behind.
func New(resultsRoot, plotsRoot, runID string, start time.Time, log *slog.Logger) (*Sink, error) {
	if log == nil {
		log = slog.Default()
	}
	stamp := fmt.Sprintf("%s_%s", start.Format("20060102_150405"), shortID(runID))

	return &Sink{
		resultsDir: filepath.Join(resultsRoot, stamp),
		plotsDir:   filepath.Join(plotsRoot, stamp),
		log:        log,
	}, nil
}

// ResultsDir is the directory holding this run's raw files.
func (s *Sink) ResultsDir() string { return s.resultsDir }

// PlotsDir is the directory plots are rendered into.
func (s *Sink) PlotsDir() string { return s.plotsDir }

// OpenRecorder opens the raw result file for target and wraps it in a
// line recorder. Data is on disk as soon as each attempt completes, so a
// killed run loses at most the trailer.
func (s *Sink) OpenRecorder(target string) (*sample.Recorder, error) {
	if err := os.MkdirAll(s.resultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}
	path := filepath.Join(s.resultsDir, RawFilename(target))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening result file: %w", err)
	}
	s.log.Debug("recording raw results", "target", target, "path", path)
	return sample.NewRecorder(f), nil
}

// RawFilename maps a target to its raw artifact name. IPv6 colons are
// flattened so the name stays portable.
func RawFilename(target string) string {
	return rawPrefix + sanitize(target) + ".txt"
}

// TargetFromPath recovers the target from a raw artifact path, the
// inverse of RawFilename as far as sanitizing allows.
func TargetFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".txt")
	if !strings.HasPrefix(name, rawPrefix) {
		return "", false
	}
	target := strings.TrimPrefix(name, rawPrefix)
	return target, target != ""
}

func sanitize(target string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\':
			return '_'
		}
		return r
	}, target)
}

// Clear deletes stored artifact directories with everything below them.
// Missing directories are skipped; the removed paths are returned.
func Clear(dirs ...string) ([]string, error) {
	var removed []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		} else if err != nil {
			return removed, err
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("clearing %s: %w", dir, err)
		}
		removed = append(removed, dir)
	}
	return removed, nil
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

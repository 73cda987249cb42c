package probe

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"
)

// Exec probes by invoking the system ping utility once per attempt. It
// needs no socket privileges and is the fallback when raw ICMP is
// unavailable.
type Exec struct{}

// NewExec returns the system-ping backend.
func NewExec() *Exec { return &Exec{} }

// rttPatterns extract the round-trip time from one ping invocation.
// Linux/macOS print "time=12.3 ms", Windows "time=12ms" or "time<1ms"; BSD
// pings report a summary line instead.
var rttPatterns = []*regexp.Regexp{
	regexp.MustCompile(`time[=<]\s*([0-9.]+)\s*ms`),
	regexp.MustCompile(`round-trip min/avg/max = [0-9.]+/([0-9.]+)/`),
}

// Probe runs one ping and parses the reported time. Non-zero exit or
// unparseable output count as an unanswered attempt.
func (e *Exec) Probe(ctx context.Context, target *Target, timeout time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := target.Addr.String()
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "ping", "-n", "1", "-w", strconv.Itoa(int(timeout.Milliseconds())), addr)
	} else {
		secs := int(timeout.Seconds())
		if secs < 1 {
			secs = 1
		}
		cmd = exec.CommandContext(ctx, "ping", "-c", "1", "-W", strconv.Itoa(secs), addr)
	}

	output, err := cmd.CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}
	if err != nil {
		// exit status 1 means no reply; anything else usually means the
		// binary could not run at all, which still loses this attempt
		return 0, fmt.Errorf("ping %s: %w", addr, err)
	}

	rtt, ok := parsePingOutput(string(output))
	if !ok {
		return 0, &timeoutError{}
	}
	return rtt, nil
}

// Close implements Prober; the exec backend holds no resources.
func (e *Exec) Close() error { return nil }

// parsePingOutput pulls the round-trip time out of a single ping run.
func parsePingOutput(output string) (time.Duration, bool) {
	for _, re := range rttPatterns {
		if m := re.FindStringSubmatch(output); len(m) > 1 {
			if ms, err := strconv.ParseFloat(m[1], 64); err == nil {
				return time.Duration(ms * float64(time.Millisecond)), true
			}
		}
	}
	return 0, false
}

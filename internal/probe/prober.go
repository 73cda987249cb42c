// Package probe issues single timed echo requests. The pipeline depends
// only on the Prober interface; backends exist for native ICMP sockets and
// for the system ping utility.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Target is a probe destination with its resolved address.
type Target struct {
	Host string // as configured: IPv4, IPv6 or hostname
	Addr *net.IPAddr
}

func (t *Target) String() string {
	if t.Addr == nil || t.Host == t.Addr.String() {
		return t.Host
	}
	return fmt.Sprintf("%s (%s)", t.Host, t.Addr)
}

// Prober issues one probe attempt and reports the round-trip time. A
// non-nil error means the attempt went unanswered (timeout, unreachable);
// callers record it as a lost packet unless the context was cancelled.
type Prober interface {
	Probe(ctx context.Context, target *Target, timeout time.Duration) (time.Duration, error)
	Close() error
}

// Resolve looks up the first IP address for host. An unresolvable host is
// a configuration-class failure: the stream never starts.
func Resolve(ctx context.Context, host string) (*Target, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolving %q: no addresses", host)
	}
	return &Target{Host: host, Addr: &addrs[0]}, nil
}

// timeoutError implements the net.Error interface. Originally taken from
// https://github.com/golang/go/blob/release-branch.go1.8/src/net/net.go#L505-L509
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

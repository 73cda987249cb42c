package probe

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	// protocolICMP is the number of the Internet Control Message Protocol
	protocolICMP = 1

	// protocolICMPv6 is the IPv6 Next Header value for ICMPv6
	protocolICMPv6 = 58

	defaultPayloadSize = 56
)

var (
	errNotBound      = errors.New("need at least one bind address")
	errSocketMissing = errors.New("no socket for address family")

	// sequence number for this process
	sequence uint32
)

// ICMP sends echo requests over raw or datagram ICMP sockets. In
// privileged mode it needs raw socket capabilities; otherwise it uses
// unprivileged datagram sockets (on Linux gated by the
// net.ipv4.ping_group_range kernel state).
type ICMP struct {
	privileged bool
	id         int
	payload    []byte

	conn4 net.PacketConn
	conn6 net.PacketConn

	mtx      sync.Mutex
	requests map[uint16]*echoRequest // in-flight, keyed by sequence number
	wg       sync.WaitGroup
}

// ICMPConfig controls socket setup for NewICMP.
type ICMPConfig struct {
	Bind4       string // empty disables IPv4
	Bind6       string // empty disables IPv6
	Privileged  bool
	PayloadSize uint16
}

// NewICMP opens the ICMP sockets and starts the receiving logic. Call
// Close to clean up.
func NewICMP(cfg ICMPConfig) (*ICMP, error) {
	network4, network6 := "udp4", "udp6"
	if cfg.Privileged {
		network4, network6 = "ip4:icmp", "ip6:ipv6-icmp"
	}

	conn4, err := connectICMP(network4, cfg.Bind4)
	if err != nil {
		return nil, err
	}
	conn6, err := connectICMP(network6, cfg.Bind6)
	if err != nil {
		if conn4 != nil {
			conn4.Close()
		}
		return nil, err
	}
	if conn4 == nil && conn6 == nil {
		return nil, errNotBound
	}

	size := cfg.PayloadSize
	if size == 0 {
		size = defaultPayloadSize
	}
	payload := make([]byte, size)
	rand.Read(payload)

	p := &ICMP{
		privileged: cfg.Privileged,
		id:         os.Getpid() & 0xffff,
		payload:    payload,
		conn4:      conn4,
		conn6:      conn6,
		requests:   make(map[uint16]*echoRequest),
	}

	if conn4 != nil {
		p.wg.Add(1)
		go p.receiver(protocolICMP, conn4)
	}
	if conn6 != nil {
		p.wg.Add(1)
		go p.receiver(protocolICMPv6, conn6)
	}

	return p, nil
}

// Close closes the ICMP sockets and waits for the receivers to drain.
func (p *ICMP) Close() error {
	if p.conn4 != nil {
		p.conn4.Close()
	}
	if p.conn6 != nil {
		p.conn6.Close()
	}
	p.wg.Wait()
	return nil
}

// Probe sends a single echo request and waits for the answer, the timeout
// or a cancellation, whichever comes first.
func (p *ICMP) Probe(ctx context.Context, target *Target, timeout time.Duration) (time.Duration, error) {
	seq := uint16(atomic.AddUint32(&sequence, 1))
	req := &echoRequest{wait: make(chan struct{})}

	echo := icmp.Echo{
		Seq:  int(seq),
		Data: p.payload,
	}
	msg := icmp.Message{
		Code: 0,
		Body: &echo,
	}

	var conn net.PacketConn
	if target.Addr.IP.To4() != nil {
		msg.Type = ipv4.ICMPTypeEcho
		conn = p.conn4
	} else {
		msg.Type = ipv6.ICMPTypeEchoRequest
		conn = p.conn6
	}
	if conn == nil {
		return 0, errSocketMissing
	}
	if p.privileged {
		// the kernel assigns the id on datagram sockets
		echo.ID = p.id
	}

	wb, err := msg.Marshal(nil)
	if err != nil {
		return 0, err
	}

	p.mtx.Lock()
	p.requests[seq] = req
	p.mtx.Unlock()

	// measurement starts here; tRecv is set by the receiver
	req.tStart = time.Now()

	if _, err := p.writeTo(conn, wb, target.Addr); err != nil {
		req.respond(err, nil)
	}

	select {
	case <-req.wait:
		err = req.result
	case <-time.After(timeout):
		err = &timeoutError{}
	case <-ctx.Done():
		err = ctx.Err()
	}

	p.mtx.Lock()
	delete(p.requests, seq)
	p.mtx.Unlock()

	if err != nil {
		return 0, err
	}
	return req.roundTripTime()
}

func (p *ICMP) writeTo(conn net.PacketConn, wb []byte, addr *net.IPAddr) (int, error) {
	if p.privileged {
		return conn.WriteTo(wb, addr)
	}
	return conn.WriteTo(wb, &net.UDPAddr{IP: addr.IP, Zone: addr.Zone})
}

// receiver listens on the socket and correlates replies with in-flight
// requests. It exits once the socket is closed.
func (p *ICMP) receiver(proto int, conn net.PacketConn) {
	defer p.wg.Done()
	rb := make([]byte, 1500)

	for {
		n, source, err := conn.ReadFrom(rb)
		if err != nil {
			var netErr net.Error
			if !errors.As(err, &netErr) || !netErr.Timeout() {
				return // socket gone
			}
			continue
		}

		var ipAddr net.IPAddr
		switch addr := source.(type) {
		case *net.UDPAddr:
			ipAddr.IP = addr.IP
			ipAddr.Zone = addr.Zone
		case *net.IPAddr:
			ipAddr = *addr
		}

		p.receive(proto, rb[:n], ipAddr, time.Now())
	}
}

// receive parses a raw message and finishes the matching request, if any.
func (p *ICMP) receive(proto int, raw []byte, addr net.IPAddr, tRecv time.Time) {
	m, err := icmp.ParseMessage(proto, raw)
	if err != nil {
		return
	}

	switch m.Type {
	case ipv4.ICMPTypeEchoReply, ipv6.ICMPTypeEchoReply:
		p.process(m.Body.(*icmp.Echo), nil, &tRecv)

	case ipv4.ICMPTypeDestinationUnreachable, ipv6.ICMPTypeDestinationUnreachable:
		body, ok := m.Body.(*icmp.DstUnreach)
		if !ok || body == nil {
			return
		}

		// the original echo request is embedded after the IP header
		var bodyData []byte
		switch proto {
		case protocolICMP:
			hdr, err := ipv4.ParseHeader(body.Data)
			if err != nil {
				return
			}
			bodyData = body.Data[hdr.Len:]
		case protocolICMPv6:
			if _, err := ipv6.ParseHeader(body.Data); err != nil {
				return
			}
			bodyData = body.Data[ipv6.HeaderLen:]
		default:
			return
		}

		msg, err := icmp.ParseMessage(proto, bodyData)
		if err != nil {
			return
		}
		echo, ok := msg.Body.(*icmp.Echo)
		if !ok || echo == nil {
			return
		}

		p.process(echo, fmt.Errorf("%v from %s", m.Type, addr.String()), nil)
	}
}

// process finishes the in-flight request matching the reply's sequence
// number. Late or unsolicited replies are dropped.
func (p *ICMP) process(body *icmp.Echo, icmpErr error, tRecv *time.Time) {
	seq := uint16(body.Seq)

	p.mtx.Lock()
	req := p.requests[seq]
	delete(p.requests, seq)
	p.mtx.Unlock()

	if req != nil {
		req.respond(icmpErr, tRecv)
	}
}

// connectICMP opens a new ICMP connection, iff network and address are not empty.
func connectICMP(network, address string) (*icmp.PacketConn, error) {
	if network == "" || address == "" {
		return nil, nil
	}
	return icmp.ListenPacket(network, address)
}

// echoRequest is a currently running echo request waiting for an answer.
type echoRequest struct {
	wait   chan struct{}
	once   sync.Once
	result error
	tStart time.Time
	tRecv  *time.Time
}

// respond finishes the request. It takes an error as failure reason and
// the receive timestamp on success. A request may be finished both by a
// failed write and by a late reply; only the first answer counts.
func (req *echoRequest) respond(err error, tRecv *time.Time) {
	req.once.Do(func() {
		req.result = err
		req.tRecv = tRecv
		close(req.wait)
	})
}

func (req *echoRequest) roundTripTime() (time.Duration, error) {
	if req.tRecv == nil {
		return 0, &timeoutError{}
	}
	return req.tRecv.Sub(req.tStart), nil
}

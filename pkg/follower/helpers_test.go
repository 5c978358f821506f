// ABOUTME: Test doubles for the follower package
// ABOUTME: In-process time source and a recording fake clock
package follower

import (
	"errors"
	"math"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/protocol"
)

// fakeClock reads a monotonic local time and records corrections
type fakeClock struct {
	start time.Time

	mu         sync.Mutex
	jumps      []float64
	slews      []float64
	jumpResult bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{start: time.Now(), jumpResult: true}
}

func (c *fakeClock) Now() float64 {
	return time.Since(c.start).Seconds() + 1000
}

func (c *fakeClock) Jump(offset float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jumps = append(c.jumps, offset)
	return c.jumpResult
}

func (c *fakeClock) Slew(offset float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slews = append(c.slews, offset)
}

func (c *fakeClock) setJumpResult(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jumpResult = ok
}

func (c *fakeClock) jumpCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jumps)
}

func (c *fakeClock) lastJump() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.jumps) == 0 {
		return math.NaN()
	}
	return c.jumps[len(c.jumps)-1]
}

func (c *fakeClock) slewCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slews)
}

func (c *fakeClock) lastSlew() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.slews) == 0 {
		return math.NaN()
	}
	return c.slews[len(c.slews)-1]
}

// sourceMode controls how the fake time source misbehaves
type sourceMode int

const (
	modeNormal sourceMode = iota
	modeCloseEarly
	modeStall
	modeGarbage
)

// fakeSource is a loopback time source whose clock runs behind the
// follower's by ahead seconds, so the follower should estimate offset ahead
type fakeSource struct {
	t     *testing.T
	ln    net.Listener
	now   func() float64
	ahead float64
	mode  sourceMode
	after int // exchanges served before misbehaving

	requests    atomic.Int64
	connections atomic.Int64
	wg          sync.WaitGroup

	mu    sync.Mutex
	conns []net.Conn
}

func startFakeSource(t *testing.T, now func() float64, ahead float64) *fakeSource {
	return startFakeSourceMode(t, now, ahead, modeNormal, 0)
}

func startFakeSourceMode(t *testing.T, now func() float64, ahead float64, mode sourceMode, after int) *fakeSource {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &fakeSource{t: t, ln: ln, now: now, ahead: ahead, mode: mode, after: after}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)

	return s
}

func (s *fakeSource) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.connections.Add(1)
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *fakeSource) handle(conn net.Conn) {
	defer conn.Close()

	for served := 0; ; served++ {
		if err := protocol.ReadRequest(conn); err != nil {
			return
		}
		s.requests.Add(1)

		if s.mode != modeNormal && served >= s.after {
			switch s.mode {
			case modeCloseEarly:
				return
			case modeStall:
				// hold the connection open without answering
				_, _ = conn.Read(make([]byte, 1))
				return
			case modeGarbage:
				_ = protocol.WriteTimestamp(conn, math.NaN())
				continue
			}
		}

		if err := protocol.WriteTimestamp(conn, s.now()-s.ahead); err != nil {
			return
		}
	}
}

func (s *fakeSource) Close() {
	if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.t.Logf("close listener: %v", err)
	}
	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *fakeSource) Port() int {
	_, port, _ := net.SplitHostPort(s.ln.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// closedPort returns a loopback port with nothing listening on it
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()
	n, _ := strconv.Atoi(port)
	return n
}

// waitFor polls cond until it holds or the timeout passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

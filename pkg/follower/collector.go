// ABOUTME: Round-trip sample collection over one TCP connection
// ABOUTME: Performs a fixed batch of sequential request/reply exchanges
package follower

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/protocol"
)

// IOTimeout bounds the connect and every reply read
const IOTimeout = 1 * time.Second

// RoundTripSample holds the timestamps of one exchange
type RoundTripSample struct {
	T0 float64 // local send time
	T1 float64 // remote time from the reply
	T2 float64 // local receive time
}

// Delay returns the round-trip delay measured on the local clock
func (s RoundTripSample) Delay() float64 {
	return s.T2 - s.T0
}

// Offset returns the local clock's offset from the remote for this sample
func (s RoundTripSample) Offset() float64 {
	return s.T0 - (s.T1+(s.T2-s.T0)/2)
}

// Collector performs sample batches against a time source
type Collector struct {
	now       func() float64
	batchSize int
	timeout   time.Duration
}

// NewCollector creates a collector reading local time from now
func NewCollector(now func() float64) *Collector {
	return &Collector{
		now:       now,
		batchSize: protocol.BatchSize,
		timeout:   IOTimeout,
	}
}

// Collect opens one connection to address:port and runs a full batch.
// The first failure aborts the batch and no samples are returned.
func (c *Collector) Collect(ctx context.Context, address string, port int) ([]RoundTripSample, error) {
	target := net.JoinHostPort(address, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailure, target, err)
	}
	defer conn.Close()

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			return nil, fmt.Errorf("%w: set nodelay: %w", ErrIOFailure, err)
		}
	}

	samples := make([]RoundTripSample, 0, c.batchSize)
	for i := 0; i < c.batchSize; i++ {
		if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("%w: set deadline: %w", ErrIOFailure, err)
		}

		t0 := c.now()
		if err := protocol.WriteRequest(conn); err != nil {
			return nil, fmt.Errorf("%w: exchange %d send: %w", ErrIOFailure, i, err)
		}

		t1, err := protocol.ReadTimestamp(conn)
		if err != nil {
			return nil, fmt.Errorf("%w: exchange %d receive: %w", ErrIOFailure, i, err)
		}
		t2 := c.now()

		samples = append(samples, RoundTripSample{T0: t0, T1: t1, T2: t2})
	}

	return samples, nil
}

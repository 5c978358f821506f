// ABOUTME: Periodic NTP cross-check of the follower clock
// ABOUTME: Compares the corrected clock against an NTP reference and logs divergence
package crosscheck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/ntp"
	"go.uber.org/zap"
)

const (
	DefaultInterval  = 5 * time.Minute
	DefaultThreshold = 50 * time.Millisecond
	DefaultTimeout   = 5 * time.Second

	backoffInitial = 5 * time.Second
)

// ErrNoServer is returned when no NTP server is configured
var ErrNoServer = errors.New("no NTP server configured")

type queryFn func(server string) (*ntp.Response, error)

// Config holds cross-check configuration
type Config struct {
	// Server is the NTP host, e.g. "pool.ntp.org"
	Server string

	// Interval between checks (default: 5m)
	Interval time.Duration

	// Threshold above which divergence is logged as a warning (default: 50ms)
	Threshold time.Duration

	// Now reads the follower's corrected clock
	Now func() time.Time

	// OnResult receives every successful check
	OnResult func(Result)

	Logger *zap.Logger
}

// Result is one comparison against the reference
type Result struct {
	Local     time.Time
	Reference time.Time

	// Delta is Local minus Reference; positive means the follower clock is ahead
	Delta   time.Duration
	RTT     time.Duration
	Stratum uint8
}

// Checker queries an NTP server and compares it with the follower clock
type Checker struct {
	config Config
	logger *zap.Logger
	query  queryFn
}

// New creates a checker
func New(config Config) (*Checker, error) {
	if config.Server == "" {
		return nil, ErrNoServer
	}
	if config.Now == nil {
		return nil, errors.New("clock reader is required")
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Checker{
		config: config,
		logger: config.Logger.Named("crosscheck"),
		query:  queryServer,
	}, nil
}

func queryServer(server string) (*ntp.Response, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: DefaultTimeout})
	if err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return resp, nil
}

// Check performs one comparison
func (c *Checker) Check() (Result, error) {
	resp, err := c.query(c.config.Server)
	if err != nil {
		return Result{}, fmt.Errorf("ntp query %s: %w", c.config.Server, err)
	}

	// Both readings are taken back to back so the shared system time cancels
	local := c.config.Now()
	reference := time.Now().Add(resp.ClockOffset)

	r := Result{
		Local:     local,
		Reference: reference,
		Delta:     local.Sub(reference),
		RTT:       resp.RTT,
		Stratum:   resp.Stratum,
	}

	fields := []zap.Field{
		zap.String("server", c.config.Server),
		zap.Duration("delta", r.Delta),
		zap.Duration("rtt", r.RTT),
		zap.Uint8("stratum", r.Stratum),
	}
	if r.Delta.Abs() > c.config.Threshold {
		c.logger.Warn("Clock diverges from NTP reference", fields...)
	} else {
		c.logger.Debug("NTP cross-check", fields...)
	}

	if c.config.OnResult != nil {
		c.config.OnResult(r)
	}
	return r, nil
}

// Run checks immediately and then every interval until ctx is done.
// Failures back off exponentially, capped at the interval.
func (c *Checker) Run(ctx context.Context) {
	var backoff time.Duration

	for {
		wait := c.config.Interval
		if _, err := c.Check(); err != nil {
			if backoff == 0 {
				backoff = backoffInitial
			} else {
				backoff *= 2
			}
			if backoff > c.config.Interval {
				backoff = c.config.Interval
			}
			wait = backoff
			c.logger.Warn("NTP cross-check failed", zap.Error(err), zap.Duration("retry_in", wait))
		} else {
			backoff = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

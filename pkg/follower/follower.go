// ABOUTME: Background synchronization loop
// ABOUTME: Paces collection, estimation and correction with retry and desync sleeps
package follower

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultInterval is used when Config.Interval is zero
	DefaultInterval = 5 * time.Second

	// RetryInterval is the pause after a failed batch or a rejected jump
	RetryInterval = 1 * time.Second

	// SlewPause is the pause after a slew step that left offset behind
	SlewPause = 100 * time.Millisecond

	// MaxDesync bounds the random sleep appended to each cycle
	MaxDesync = 1 * time.Second
)

// Config holds follower configuration
type Config struct {
	// Address is the time source host name or IP
	Address string

	// Port is the time source TCP port
	Port int

	// Interval is the pause between successful cycles (default: 5s)
	Interval time.Duration

	// Clock supplies read, jump and slew capabilities
	Clock Clock

	// RetryInterval overrides the failure retry pause (default: 1s)
	RetryInterval time.Duration

	// SlewPause overrides the pause after an incomplete slew (default: 100ms)
	SlewPause time.Duration

	// Desync returns the random sleep appended to each cycle (default: uniform in [0, 1s))
	Desync func() time.Duration

	// Logger receives diagnostics (default: no-op)
	Logger *zap.Logger

	// OnCycle is called on the follower goroutine after every cycle; it must not block
	OnCycle func(CycleReport)
}

// CycleReport describes one pass of the loop
type CycleReport struct {
	Started    time.Time
	Finished   time.Time
	Peer       string
	Samples    int
	Estimate   Estimate
	Correction Correction
	Err        error
}

// Follower keeps a Clock synchronized with a remote time source
type Follower struct {
	config     Config
	collector  *Collector
	controller *Controller
	status     *Status
	logger     *zap.Logger

	peerMu  sync.RWMutex
	address string
	port    int

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New validates config and starts the follower goroutine
func New(config Config) (*Follower, error) {
	if config.Clock == nil {
		return nil, errors.New("clock is required")
	}
	if err := validatePeer(config.Address, config.Port); err != nil {
		return nil, err
	}

	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = RetryInterval
	}
	if config.SlewPause <= 0 {
		config.SlewPause = SlewPause
	}
	if config.Desync == nil {
		config.Desync = func() time.Duration { return rand.N(MaxDesync) }
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	status := newStatus()
	logger := config.Logger.Named("follower")

	f := &Follower{
		config:     config,
		collector:  NewCollector(config.Clock.Now),
		controller: NewController(config.Clock, status, logger),
		status:     status,
		logger:     logger,
		address:    config.Address,
		port:       config.Port,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	status.running.Store(true)
	go f.run()

	return f, nil
}

func validatePeer(address string, port int) error {
	if address == "" {
		return errors.New("address is required")
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}

// InSync reports the latest synchronization state
func (f *Follower) InSync() bool {
	return f.status.InSync()
}

// Status returns an eventually consistent copy of the follower state
func (f *Follower) Status() Snapshot {
	return f.status.Snapshot()
}

// Peer returns the configured time source
func (f *Follower) Peer() (string, int) {
	f.peerMu.RLock()
	defer f.peerMu.RUnlock()
	return f.address, f.port
}

// SetPeer changes the time source; it takes effect on the next batch
func (f *Follower) SetPeer(address string, port int) error {
	if err := validatePeer(address, port); err != nil {
		return err
	}

	f.peerMu.Lock()
	f.address = address
	f.port = port
	f.peerMu.Unlock()

	f.logger.Info("Peer changed", zap.String("peer", net.JoinHostPort(address, strconv.Itoa(port))))
	return nil
}

// Terminate stops the loop and blocks until the goroutine has exited.
// A sleep in progress is cut short; a batch in progress finishes or times out.
func (f *Follower) Terminate() {
	f.stopOnce.Do(func() {
		f.logger.Info("Terminating")
		f.status.running.Store(false)
		f.cancel()
	})
	<-f.done
}

// Done is closed when the follower goroutine has exited
func (f *Follower) Done() <-chan struct{} {
	return f.done
}

func (f *Follower) run() {
	defer close(f.done)
	f.logger.Debug("Starting")

	for f.status.Running() {
		report := f.cycle()
		if report.Err != nil && f.ctx.Err() != nil {
			break
		}

		f.status.cycles.Add(1)
		if report.Err != nil {
			f.status.failures.Add(1)
			f.status.inSync.Store(false)
		}
		if f.config.OnCycle != nil {
			f.config.OnCycle(report)
		}

		if report.Err != nil {
			f.logger.Debug("Failed to get offset. Will retry")
			f.sleep(f.config.RetryInterval)
		} else {
			if report.Correction.Retry {
				f.sleep(f.config.RetryInterval)
				continue
			}
			if report.Correction.Pending {
				f.sleep(f.config.SlewPause)
			}
			f.sleep(f.config.Interval)
		}

		f.sleep(f.config.Desync())
	}

	f.logger.Debug("Stopped")
}

// cycle runs one collect, estimate and correct pass
func (f *Follower) cycle() CycleReport {
	address, port := f.Peer()
	report := CycleReport{
		Started: time.Now(),
		Peer:    net.JoinHostPort(address, strconv.Itoa(port)),
	}

	samples, err := f.collector.Collect(f.ctx, address, port)
	report.Samples = len(samples)
	if err != nil {
		report.Err = err
		f.logFailure(report.Peer, err)
		report.Finished = time.Now()
		return report
	}

	est, err := EstimateOffset(samples)
	if err != nil {
		report.Err = err
		f.logFailure(report.Peer, err)
		report.Finished = time.Now()
		return report
	}

	f.logger.Info("Offset",
		zap.Float64("offset_ms", est.Offset/Millisecond),
		zap.Float64("jitter_ms", est.Jitter/Millisecond))

	f.status.setEstimate(est, time.Now())
	report.Estimate = est
	report.Correction = f.controller.Apply(est)
	report.Finished = time.Now()
	return report
}

func (f *Follower) logFailure(peer string, err error) {
	if f.ctx.Err() != nil {
		return
	}
	f.logger.Error("Failed to get offset", zap.String("peer", peer), zap.Error(err))
}

// sleep waits for d or until the follower is terminated
func (f *Follower) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-f.ctx.Done():
	}
}

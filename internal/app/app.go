// ABOUTME: Follower application orchestration
// ABOUTME: Wires clock, discovery, follower, metrics, status server and TUI
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/internal/crosscheck"
	"github.com/Resonate-Protocol/clocksync-go/internal/logging"
	"github.com/Resonate-Protocol/clocksync-go/internal/metrics"
	"github.com/Resonate-Protocol/clocksync-go/internal/statusws"
	"github.com/Resonate-Protocol/clocksync-go/internal/tracing"
	"github.com/Resonate-Protocol/clocksync-go/internal/ui"
	"github.com/Resonate-Protocol/clocksync-go/internal/version"
	"github.com/Resonate-Protocol/clocksync-go/pkg/discovery"
	"github.com/Resonate-Protocol/clocksync-go/pkg/follower"
	"github.com/Resonate-Protocol/clocksync-go/pkg/sysclock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

// failoverAfter is the number of consecutive failed cycles before switching
// to another discovered source
const failoverAfter = 3

// ErrNoSource is returned when discovery times out without finding a source
var ErrNoSource = errors.New("no time source found")

// App runs one follower with its observability surfaces
type App struct {
	config     Config
	instanceID string
	logger     *zap.Logger

	clock     follower.Clock
	clockTime func() time.Time

	follower atomic.Pointer[follower.Follower]
	metrics  *metrics.Metrics
	status   *statusws.Server
	tracer   *tracing.Tracer
	checker  *crosscheck.Checker
	tui      *ui.TUI
	disco    *discovery.Manager

	sourcesMu   sync.Mutex
	sources     []string
	failStreak  int
	traceCloser io.Closer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates config and builds every component without starting it
func New(config Config) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		File:   config.LogFile,
		Stdout: !config.UseTUI,
		Debug:  config.Debug,
	})

	a := &App{
		config:     config,
		instanceID: uuid.New().String(),
		logger:     logger,
	}

	a.buildClock()
	a.metrics = metrics.New(a.snapshot)

	if config.Listen != "" {
		srv, err := statusws.NewServer(statusws.Config{
			Addr:    config.Listen,
			Status:  a.snapshot,
			Metrics: a.metrics.Handler(),
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		a.status = srv
	}

	if config.Trace {
		tracer, err := a.buildTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to start tracing: %w", err)
		}
		a.tracer = tracer
	}

	if config.NTPServer != "" {
		checker, err := crosscheck.New(crosscheck.Config{
			Server:   config.NTPServer,
			Interval: config.NTPInterval,
			Now:      a.clockTime,
			OnResult: a.onReference,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		a.checker = checker
	}

	if config.UseTUI {
		a.tui = ui.NewTUI(config.Name)
	}

	return a, nil
}

func (a *App) buildClock() {
	switch a.config.Clock {
	case ClockSystem:
		a.clock = sysclock.NewSystem(a.config.MaxJump, a.logger)
		a.clockTime = time.Now
	default:
		v := sysclock.NewVirtual()
		a.clock = v
		a.clockTime = v.Time
	}
}

func (a *App) buildTracer() (*tracing.Tracer, error) {
	var w io.Writer = os.Stdout
	if a.config.UseTUI {
		lj := &lumberjack.Logger{
			Filename:   a.config.TraceFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		a.traceCloser = lj
		w = lj
	}
	return tracing.New(w, version.Product, a.instanceID)
}

// Run starts all components and blocks until ctx is done or the user quits
func (a *App) Run(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)
	defer a.shutdown()

	a.logger.Info("Starting follower",
		zap.String("name", a.config.Name),
		zap.String("instance_id", a.instanceID),
		zap.String("version", version.Version),
		zap.String("clock", a.config.Clock))

	if a.status != nil {
		if err := a.status.Start(); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
	}

	if a.tui != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.tui.Start(); err != nil {
				a.logger.Error("TUI error", zap.Error(err))
			}
			a.cancel()
		}()
		go func() {
			select {
			case <-a.tui.QuitChan():
				a.cancel()
			case <-a.ctx.Done():
			}
		}()
	}

	addr, err := a.resolveSource()
	if err != nil {
		return err
	}
	if addr == "" {
		// cancelled during discovery
		return nil
	}

	host, port, err := ParseServer(addr)
	if err != nil {
		return err
	}

	f, err := follower.New(follower.Config{
		Address:  host,
		Port:     port,
		Interval: a.config.Interval,
		Clock:    a.clock,
		Logger:   a.logger,
		OnCycle:  a.onCycle,
	})
	if err != nil {
		return err
	}
	a.follower.Store(f)
	if a.tui != nil {
		a.tui.UpdatePeer(addr)
	}

	if a.checker != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.checker.Run(a.ctx)
		}()
	}

	<-a.ctx.Done()
	return nil
}

// resolveSource returns the manual server or waits for mDNS discovery
func (a *App) resolveSource() (string, error) {
	if a.config.Server != "" {
		return a.config.Server, nil
	}

	a.disco = discovery.NewManager(discovery.Config{
		ServiceName: a.config.Name,
		Port:        listenPort(a.config.Listen),
		InstanceID:  a.instanceID,
		Logger:      a.logger,
	})
	if listenPort(a.config.Listen) > 0 {
		if err := a.disco.Advertise(); err != nil {
			a.logger.Warn("Failed to advertise follower", zap.Error(err))
		}
	}
	a.disco.Browse()

	a.logger.Info("Searching for time sources", zap.String("service", discovery.SourceService))

	var timeout <-chan time.Time
	if a.config.DiscoveryTimeout > 0 {
		timer := time.NewTimer(a.config.DiscoveryTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case src := <-a.disco.Sources():
		a.addSource(src.Addr())
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.collectSources()
		}()
		return src.Addr(), nil
	case <-timeout:
		return "", ErrNoSource
	case <-a.ctx.Done():
		return "", nil
	}
}

// collectSources remembers sources found after the first one for failover
func (a *App) collectSources() {
	for {
		select {
		case src := <-a.disco.Sources():
			a.addSource(src.Addr())
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) addSource(addr string) {
	a.sourcesMu.Lock()
	defer a.sourcesMu.Unlock()
	for _, s := range a.sources {
		if s == addr {
			return
		}
	}
	a.sources = append(a.sources, addr)
}

// nextSource returns the known source after current, if any
func (a *App) nextSource(current string) (string, bool) {
	a.sourcesMu.Lock()
	defer a.sourcesMu.Unlock()
	if len(a.sources) < 2 {
		return "", false
	}
	for i, s := range a.sources {
		if s == current {
			return a.sources[(i+1)%len(a.sources)], true
		}
	}
	return a.sources[0], true
}

// onCycle runs on the follower goroutine and must not block
func (a *App) onCycle(r follower.CycleReport) {
	a.metrics.ObserveCycle(r)
	if a.tracer != nil {
		a.tracer.RecordCycle(r)
	}

	snap := a.snapshot()
	if a.status != nil {
		a.status.PublishCycle(r)
	}
	if a.tui != nil {
		a.tui.UpdateCycle(r)
		a.tui.UpdateStatus(snap)
	}

	a.checkFailover(r)
}

func (a *App) checkFailover(r follower.CycleReport) {
	if r.Err == nil {
		a.failStreak = 0
		return
	}
	a.failStreak++
	if a.failStreak < failoverAfter || a.disco == nil {
		return
	}

	next, ok := a.nextSource(r.Peer)
	if !ok || next == r.Peer {
		return
	}
	host, port, err := ParseServer(next)
	if err != nil {
		return
	}
	f := a.follower.Load()
	if f == nil {
		return
	}
	if err := f.SetPeer(host, port); err != nil {
		a.logger.Warn("Failover rejected", zap.String("peer", next), zap.Error(err))
		return
	}

	a.failStreak = 0
	a.logger.Warn("Switching time source",
		zap.String("from", r.Peer), zap.String("to", next))
	if a.tui != nil {
		a.tui.UpdatePeer(next)
	}
}

func (a *App) onReference(r crosscheck.Result) {
	a.metrics.SetReferenceDelta(r.Delta.Seconds())
	if a.tui != nil {
		a.tui.UpdateReference(r.Delta)
	}
}

// snapshot is safe to call before the follower exists
func (a *App) snapshot() follower.Snapshot {
	if f := a.follower.Load(); f != nil {
		return f.Status()
	}
	return follower.Snapshot{Jitter: follower.StartingJitter, OffsetRemains: true}
}

func (a *App) shutdown() {
	a.cancel()

	if f := a.follower.Load(); f != nil {
		f.Terminate()
	}
	if a.disco != nil {
		a.disco.Stop()
	}
	if a.status != nil {
		a.status.Stop()
	}
	if a.tui != nil {
		a.tui.Stop()
	}

	a.wg.Wait()

	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("Tracer shutdown error", zap.Error(err))
		}
		cancel()
	}
	if a.traceCloser != nil {
		a.traceCloser.Close()
	}

	a.logger.Info("Stopped")
	a.logger.Sync()
}

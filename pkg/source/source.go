// ABOUTME: Reference time source speaking the follower's sync protocol
// ABOUTME: Answers each 4-byte marker with its clock as a little-endian float64
package source

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/discovery"
	"github.com/Resonate-Protocol/clocksync-go/pkg/protocol"
	"github.com/Resonate-Protocol/clocksync-go/pkg/sysclock"
	"go.uber.org/zap"
)

// IdleTimeout closes connections that stop sending requests
const IdleTimeout = 10 * time.Second

// Config holds time source configuration
type Config struct {
	// Addr is the TCP listen address
	Addr string

	// Offset is added to every reply, for exercising followers
	Offset time.Duration

	// Now reads the served clock (default: host realtime clock)
	Now func() float64

	Name       string
	EnableMDNS bool
	Logger     *zap.Logger
}

// Server serves timestamps to followers
type Server struct {
	config   Config
	logger   *zap.Logger
	listener net.Listener
	mdns     *discovery.Manager

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	closed  bool

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a time source
func New(config Config) *Server {
	if config.Now == nil {
		config.Now = func() float64 { return sysclock.UnixSeconds(time.Now()) }
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Server{
		config: config,
		logger: config.Logger.Named("source"),
		conns:  make(map[net.Conn]struct{}),
	}
}

// Start listens and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.logger.Info("Time source listening",
		zap.String("addr", ln.Addr().String()),
		zap.Duration("offset", s.config.Offset))

	if s.config.EnableMDNS {
		s.mdns = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        ln.Addr().(*net.TCPAddr).Port,
			SourceMode:  true,
			Logger:      s.logger,
		})
		if err := s.mdns.Advertise(); err != nil {
			s.logger.Warn("Failed to start mDNS advertisement", zap.Error(err))
		}
	}

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error("Accept failed", zap.Error(err))
			}
			return
		}

		if !s.track(conn) {
			conn.Close()
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.serve(conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
	conn.Close()
}

// serve answers requests until the peer hangs up or goes idle
func (s *Server) serve(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	offset := s.config.Offset.Seconds()
	var served int

	for {
		conn.SetReadDeadline(time.Now().Add(IdleTimeout))
		if err := protocol.ReadRequest(conn); err != nil {
			if errors.Is(err, protocol.ErrBadMarker) {
				s.logger.Warn("Bad request marker", zap.String("remote", conn.RemoteAddr().String()))
			}
			break
		}
		if err := protocol.WriteTimestamp(conn, s.config.Now()+offset); err != nil {
			break
		}
		served++
	}

	s.logger.Debug("Follower disconnected",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("served", served))
}

// Stop closes the listener and all connections, then waits for handlers
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.mdns != nil {
			s.mdns.Stop()
		}
		if s.listener != nil {
			s.listener.Close()
		}

		s.connsMu.Lock()
		s.closed = true
		for c := range s.conns {
			c.Close()
		}
		s.connsMu.Unlock()

		s.wg.Wait()
	})
}

// ABOUTME: HTTP status surface for the follower
// ABOUTME: Serves /status JSON, /metrics and a /ws feed of cycle events
package statusws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/follower"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	sendBuffer    = 16
)

// Message is the websocket envelope
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// CycleEvent is the payload of a "cycle" message
type CycleEvent struct {
	Peer     string  `json:"peer"`
	Samples  int     `json:"samples"`
	Offset   float64 `json:"offset"`
	Jitter   float64 `json:"jitter"`
	Action   string  `json:"action"`
	Applied  float64 `json:"applied"`
	Residual float64 `json:"residual"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error,omitempty"`
}

// NewCycleEvent flattens a cycle report for the wire
func NewCycleEvent(r follower.CycleReport) CycleEvent {
	ev := CycleEvent{
		Peer:     r.Peer,
		Samples:  r.Samples,
		Offset:   r.Estimate.Offset,
		Jitter:   r.Estimate.Jitter,
		Action:   r.Correction.Action.String(),
		Applied:  r.Correction.Applied,
		Residual: r.Correction.Residual,
		Duration: r.Finished.Sub(r.Started).Seconds(),
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
		ev.Action = ""
	}
	return ev
}

// Config holds status server configuration
type Config struct {
	// Addr is the listen address, e.g. ":9123"
	Addr string

	// Status returns the current follower status
	Status func() follower.Snapshot

	// Metrics is mounted at /metrics when set
	Metrics http.Handler

	Logger *zap.Logger
}

type client struct {
	conn     *websocket.Conn
	sendChan chan Message
}

// Server serves follower status over HTTP and websocket
type Server struct {
	config   Config
	logger   *zap.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener

	clientsMu  sync.RWMutex
	clients    map[*client]struct{}
	isShutdown bool

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewServer builds the handler tree without listening
func NewServer(config Config) (*Server, error) {
	if config.Status == nil {
		return nil, errors.New("status function is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		logger: config.Logger.Named("statusws"),
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Local network tool: accept all origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}

	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	if config.Metrics != nil {
		s.mux.Handle("/metrics", config.Metrics)
	}

	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Status server listening", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes client feeds and shuts the HTTP server down
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.clientsMu.Lock()
		s.isShutdown = true
		for c := range s.clients {
			close(c.sendChan)
			delete(s.clients, c)
		}
		s.clientsMu.Unlock()

		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.logger.Warn("HTTP server shutdown error", zap.Error(err))
			}
		}

		s.wg.Wait()
	})
}

// Clients returns the number of connected websocket clients
func (s *Server) Clients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// PublishCycle sends a cycle event and fresh status to every client.
// Slow clients drop messages rather than block the caller.
func (s *Server) PublishCycle(r follower.CycleReport) {
	s.broadcast(Message{Type: "cycle", Payload: NewCycleEvent(r)})
	s.broadcast(Message{Type: "status", Payload: s.config.Status()})
}

func (s *Server) broadcast(msg Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for c := range s.clients {
		select {
		case c.sendChan <- msg:
		default:
			s.logger.Debug("Dropping message for slow client", zap.String("type", msg.Type))
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.config.Status()); err != nil {
		s.logger.Warn("Error encoding status", zap.Error(err))
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{conn: conn, sendChan: make(chan Message, sendBuffer)}

	s.clientsMu.Lock()
	if s.isShutdown {
		s.clientsMu.Unlock()
		return
	}
	s.clients[c] = struct{}{}
	// Initial status so clients render immediately
	c.sendChan <- Message{Type: "status", Payload: s.config.Status()}
	s.clientsMu.Unlock()

	s.logger.Debug("Status client connected", zap.String("remote", r.RemoteAddr))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.clientWriter(c)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket error", zap.Error(err))
			}
			break
		}
	}

	s.removeClient(c)
	conn.Close()
	<-writerDone
	s.logger.Debug("Status client disconnected", zap.String("remote", r.RemoteAddr))
}

func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeDeadline))
				c.conn.Close()
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.sendChan)
	}
}

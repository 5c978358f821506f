// ABOUTME: mDNS service discovery for clocksync
// ABOUTME: Handles follower advertisement and time source browsing
package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

const (
	// SourceService is the service type advertised by time sources
	SourceService = "_clocksync._tcp"

	// FollowerService is the service type advertised by followers
	FollowerService = "_clocksync-follower._tcp"

	queryTimeout = 3 * time.Second
)

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int    // status port advertised by the follower
	InstanceID  string // published as id=<InstanceID>
	SourceMode  bool   // advertise as a time source instead of a follower
	Logger      *zap.Logger
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	sources chan *SourceInfo
}

// SourceInfo describes a discovered time source
type SourceInfo struct {
	Name string
	Host string
	Port int
}

// Addr returns host:port
func (s *SourceInfo) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		config:  config,
		logger:  logger.Named("discovery"),
		ctx:     ctx,
		cancel:  cancel,
		sources: make(chan *SourceInfo, 10),
	}
}

// Advertise advertises this follower, or source in SourceMode, via mDNS
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	serviceType, role := FollowerService, "follower"
	if m.config.SourceMode {
		serviceType, role = SourceService, "source"
	}

	txt := []string{"role=" + role}
	if m.config.InstanceID != "" {
		txt = append(txt, "id="+m.config.InstanceID)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		serviceType,
		"",
		"",
		m.config.Port,
		ips,
		txt,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.logger.Info("Advertising mDNS service",
		zap.String("name", m.config.ServiceName),
		zap.Int("port", m.config.Port),
		zap.String("type", serviceType))

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for time sources until Stop is called
func (m *Manager) Browse() {
	go m.browseLoop()
}

// browseLoop continuously browses for sources, reporting each one once
func (m *Manager) browseLoop() {
	seen := make(map[string]bool)

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				src, ok := sourceFromEntry(entry)
				if !ok || seen[src.Addr()] {
					continue
				}
				seen[src.Addr()] = true

				m.logger.Info("Discovered time source",
					zap.String("name", src.Name), zap.String("addr", src.Addr()))

				select {
				case m.sources <- src:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service:     SourceService,
			Domain:      "local",
			Timeout:     queryTimeout,
			Entries:     entries,
			DisableIPv6: true,
		}

		if err := mdns.Query(params); err != nil {
			m.logger.Debug("mDNS query failed", zap.Error(err))
		}
		close(entries)
		<-done

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// sourceFromEntry converts an mDNS answer, skipping entries without an address
func sourceFromEntry(entry *mdns.ServiceEntry) (*SourceInfo, bool) {
	if entry == nil || entry.Port == 0 {
		return nil, false
	}

	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		return nil, false
	}

	return &SourceInfo{Name: entry.Name, Host: host, Port: entry.Port}, true
}

// Sources returns the channel of discovered time sources
func (m *Manager) Sources() <-chan *SourceInfo {
	return m.sources
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns non-loopback IPv4 addresses of interfaces that are up
func getLocalIPs() ([]net.IP, error) {
	ips := []net.IP{}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}

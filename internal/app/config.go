// ABOUTME: Follower application configuration
// ABOUTME: Defaults, validation and environment overrides
package app

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/follower"
)

const (
	ClockVirtual = "virtual"
	ClockSystem  = "system"

	EnvServer   = "CLOCKSYNC_SERVER"
	EnvInterval = "CLOCKSYNC_INTERVAL"
)

// Config holds follower application configuration
type Config struct {
	// Server is host:port of the time source; empty means discover via mDNS
	Server string

	Interval time.Duration

	// Clock selects the corrected clock: "virtual" or "system"
	Clock   string
	MaxJump time.Duration

	// Listen is the status/metrics HTTP address; empty disables it
	Listen string

	NTPServer   string
	NTPInterval time.Duration

	Trace     bool
	TraceFile string

	LogFile string
	Debug   bool
	UseTUI  bool

	Name             string
	DiscoveryTimeout time.Duration
}

// DefaultConfig returns the configuration used when no flags are given
func DefaultConfig() Config {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "unknown"
	}

	return Config{
		Interval:    follower.DefaultInterval,
		Clock:       ClockVirtual,
		Listen:      ":9123",
		NTPInterval: 5 * time.Minute,
		TraceFile:   "clocksync-traces.json",
		LogFile:     "clocksync-follower.log",
		UseTUI:      true,
		Name:        name + "-clocksync-follower",
	}
}

// ApplyEnv overrides fields from the environment unless the matching flag
// was set explicitly.
func (c *Config) ApplyEnv(lookup func(string) (string, bool), flagSet func(string) bool) error {
	if v, ok := lookup(EnvServer); ok && v != "" && !flagSet("server") {
		c.Server = v
	}
	if v, ok := lookup(EnvInterval); ok && v != "" && !flagSet("interval") {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvInterval, err)
		}
		c.Interval = d
	}
	return nil
}

// Validate checks the configuration before anything is started
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if c.Clock != ClockVirtual && c.Clock != ClockSystem {
		return fmt.Errorf("unknown clock %q (want %s or %s)", c.Clock, ClockVirtual, ClockSystem)
	}
	if c.MaxJump < 0 {
		return errors.New("max jump must not be negative")
	}
	if c.Server != "" {
		if _, _, err := ParseServer(c.Server); err != nil {
			return err
		}
	}
	return nil
}

// ParseServer splits host:port and checks the port range
func ParseServer(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, fmt.Errorf("invalid server address %q: %w", s, err)
	}
	if host == "" {
		return "", 0, fmt.Errorf("invalid server address %q: missing host", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid server port %q", portStr)
	}
	return host, port, nil
}

// listenPort extracts the port advertised over mDNS
func listenPort(listen string) int {
	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(portStr)
	return port
}

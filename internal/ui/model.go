// ABOUTME: Bubbletea model for the follower TUI
// ABOUTME: Holds sync state and renders it with lipgloss
package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/follower"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// historySize is the number of offsets kept for the trend line
const historySize = 40

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	faint     = lipgloss.NewStyle().Faint(true)
)

// StatusMsg carries a fresh status snapshot
type StatusMsg follower.Snapshot

// CycleMsg carries one completed follower cycle
type CycleMsg follower.CycleReport

// PeerMsg reports the time source in use
type PeerMsg string

// ReferenceMsg reports the latest NTP cross-check delta
type ReferenceMsg time.Duration

type tickMsg time.Time

// Model represents the TUI state
type Model struct {
	name      string
	peer      string
	startTime time.Time

	status    follower.Snapshot
	lastCycle follower.CycleReport
	haveCycle bool
	history   []float64

	reference     time.Duration
	haveReference bool

	showDebug bool
	quitting  bool
	quitChan  chan struct{}

	width  int
	height int
}

// NewModel creates a model for the named follower
func NewModel(name string, quitChan chan struct{}) Model {
	return Model{
		name:      name,
		startTime: time.Now(),
		quitChan:  quitChan,
		status:    follower.Snapshot{Jitter: follower.StartingJitter, OffsetRemains: true},
	}
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the uptime ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tickEvery()
	case StatusMsg:
		m.status = follower.Snapshot(msg)
	case CycleMsg:
		m.applyCycle(follower.CycleReport(msg))
	case PeerMsg:
		m.peer = string(msg)
	case ReferenceMsg:
		m.reference = time.Duration(msg)
		m.haveReference = true
	}

	return m, nil
}

func (m *Model) applyCycle(r follower.CycleReport) {
	m.lastCycle = r
	m.haveCycle = true
	if r.Peer != "" {
		m.peer = r.Peer
	}
	if r.Err != nil {
		return
	}
	m.history = append(m.history, r.Estimate.Offset)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		select {
		case m.quitChan <- struct{}{}:
		default:
		}
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping follower...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Clock Sync Follower"))
	b.WriteString("\n\n")

	field(&b, "Name: ", m.name)
	peer := m.peer
	if peer == "" {
		peer = "searching..."
	}
	field(&b, "Source: ", peer)
	field(&b, "Uptime: ", time.Since(m.startTime).Round(time.Second).String())
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Sync: "))
	b.WriteString(m.renderSyncState())
	b.WriteString("\n")

	field(&b, "Offset: ", formatMillis(m.status.Offset))
	jitter := "n/a"
	if m.status.Jitter < follower.StartingJitter {
		jitter = formatMillis(m.status.Jitter)
	}
	field(&b, "Jitter: ", jitter)
	field(&b, "Last action: ", m.status.LastAction.String())
	if m.haveReference {
		field(&b, "NTP delta: ", fmt.Sprintf("%+.3fms", float64(m.reference)/float64(time.Millisecond)))
	}
	b.WriteString("\n")

	if len(m.history) > 0 {
		b.WriteString(headerStyle.Render("Trend: "))
		b.WriteString(valueStyle.Render(sparkline(m.history)))
		b.WriteString("\n\n")
	}

	b.WriteString(valueStyle.Render(fmt.Sprintf("Cycles: %d  Jumps: %d  Rejected: %d  Slews: %d  Failures: %d",
		m.status.Cycles, m.status.Jumps, m.status.RejectedJumps, m.status.Slews, m.status.Failures)))
	b.WriteString("\n")

	if m.showDebug {
		b.WriteString("\n")
		b.WriteString(m.renderDebug())
	}

	b.WriteString("\n")
	b.WriteString(faint.Render("d: debug  q: quit"))

	return b.String()
}

func field(b *strings.Builder, label, value string) {
	b.WriteString(headerStyle.Render(label))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

func (m Model) renderSyncState() string {
	switch {
	case m.status.InSync:
		return goodStyle.Render("✓ in sync")
	case m.haveCycle && m.lastCycle.Err != nil:
		return badStyle.Render("✗ source unreachable")
	case m.status.Cycles == 0:
		return warnStyle.Render("… waiting for first estimate")
	default:
		return warnStyle.Render("⚠ correcting")
	}
}

func (m Model) renderDebug() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("DEBUG"))
	b.WriteString("\n")
	if !m.haveCycle {
		b.WriteString(valueStyle.Render("  no cycles yet"))
		b.WriteString("\n")
		return b.String()
	}

	r := m.lastCycle
	b.WriteString(valueStyle.Render(fmt.Sprintf("  samples: %d  batch: %s",
		r.Samples, r.Finished.Sub(r.Started).Round(time.Millisecond))))
	b.WriteString("\n")
	if r.Err != nil {
		b.WriteString(badStyle.Render("  error: " + r.Err.Error()))
	} else {
		b.WriteString(valueStyle.Render(fmt.Sprintf("  applied: %s  residual: %s",
			formatMillis(r.Correction.Applied), formatMillis(r.Correction.Residual))))
	}
	b.WriteString("\n")
	return b.String()
}

func formatMillis(seconds float64) string {
	return fmt.Sprintf("%+.3fms", seconds*1000)
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// sparkline scales values between their min and max
func sparkline(values []float64) string {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]rune, len(values))
	for i, v := range values {
		level := 0
		if hi > lo {
			level = int((v - lo) / (hi - lo) * float64(len(sparkLevels)-1))
		}
		out[i] = sparkLevels[level]
	}
	return string(out)
}

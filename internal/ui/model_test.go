// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, cycle history, key handling and rendering
package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/follower"
	tea "github.com/charmbracelet/bubbletea"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestNewModel(t *testing.T) {
	model := NewModel("kitchen", nil)

	if model.name != "kitchen" {
		t.Errorf("expected name 'kitchen', got '%s'", model.name)
	}
	if model.status.InSync {
		t.Error("expected not in sync initially")
	}
	if model.status.Jitter != follower.StartingJitter {
		t.Errorf("expected starting jitter, got %v", model.status.Jitter)
	}
	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}
}

func TestStatusMsg(t *testing.T) {
	model := NewModel("test", nil)

	model = update(t, model, StatusMsg{InSync: true, Offset: 0.0002, Cycles: 4, LastAction: follower.ActionSlew})

	if !model.status.InSync {
		t.Error("expected in sync after status update")
	}
	if model.status.Cycles != 4 {
		t.Errorf("expected 4 cycles, got %d", model.status.Cycles)
	}

	view := model.View()
	if !strings.Contains(view, "in sync") {
		t.Error("expected view to show in sync")
	}
	if !strings.Contains(view, "+0.200ms") {
		t.Error("expected view to show offset in milliseconds")
	}
	if !strings.Contains(view, "slew") {
		t.Error("expected view to show last action")
	}
}

func TestCycleMsgHistory(t *testing.T) {
	model := NewModel("test", nil)

	for i := 0; i < historySize+5; i++ {
		model = update(t, model, CycleMsg{Peer: "10.0.0.1:4000", Estimate: follower.Estimate{Offset: float64(i)}})
	}

	if len(model.history) != historySize {
		t.Fatalf("expected history capped at %d, got %d", historySize, len(model.history))
	}
	if model.history[0] != 5 {
		t.Errorf("expected oldest entries dropped, first is %v", model.history[0])
	}
	if model.peer != "10.0.0.1:4000" {
		t.Errorf("expected peer from cycle, got %q", model.peer)
	}
}

func TestFailedCycle(t *testing.T) {
	model := NewModel("test", nil)
	model = update(t, model, StatusMsg{Cycles: 1, Failures: 1})
	model = update(t, model, CycleMsg{Err: errors.New("connection refused")})

	if len(model.history) != 0 {
		t.Error("failed cycles must not enter the history")
	}
	if !strings.Contains(model.View(), "unreachable") {
		t.Error("expected view to show unreachable source")
	}

	model = update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	if !strings.Contains(model.View(), "connection refused") {
		t.Error("expected debug view to show the error")
	}
}

func TestPeerAndReference(t *testing.T) {
	model := NewModel("test", nil)
	if !strings.Contains(model.View(), "searching") {
		t.Error("expected searching before a peer is known")
	}

	model = update(t, model, PeerMsg("192.168.1.5:4000"))
	model = update(t, model, ReferenceMsg(-3*time.Millisecond))

	view := model.View()
	if !strings.Contains(view, "192.168.1.5:4000") {
		t.Error("expected peer in view")
	}
	if !strings.Contains(view, "-3.000ms") {
		t.Error("expected NTP delta in view")
	}
}

func TestDebugToggle(t *testing.T) {
	model := NewModel("test", nil)
	key := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")}

	model = update(t, model, key)
	if !model.showDebug {
		t.Error("expected debug on")
	}
	model = update(t, model, key)
	if model.showDebug {
		t.Error("expected debug off")
	}
}

func TestQuitSignals(t *testing.T) {
	quit := make(chan struct{}, 1)
	model := NewModel("test", quit)

	next, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !next.(Model).quitting {
		t.Error("expected quitting state")
	}

	select {
	case <-quit:
	default:
		t.Error("expected quit signal")
	}
}

func TestSparkline(t *testing.T) {
	if got := sparkline([]float64{1, 1, 1}); got != "▁▁▁" {
		t.Errorf("flat input: got %q", got)
	}
	if got := sparkline([]float64{0, 1}); got != "▁█" {
		t.Errorf("range input: got %q", got)
	}
}

func TestTUIStopIdempotent(t *testing.T) {
	tui := NewTUI("test")
	tui.Stop()
	tui.Stop()

	// Updates after stop are dropped
	tui.UpdateStatus(follower.Snapshot{})
	tui.UpdatePeer("x")
}

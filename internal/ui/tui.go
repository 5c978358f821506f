// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and forwards follower updates
package ui

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/follower"
	tea "github.com/charmbracelet/bubbletea"
)

// TUI manages the follower TUI
type TUI struct {
	program  *tea.Program
	updates  chan tea.Msg
	quitChan chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewTUI creates a TUI for the named follower
func NewTUI(name string) *TUI {
	t := &TUI{
		updates:  make(chan tea.Msg, 32),
		quitChan: make(chan struct{}, 1),
	}
	t.program = tea.NewProgram(NewModel(name, t.quitChan), tea.WithAltScreen())
	return t
}

// Start runs the TUI until the user quits or Stop is called
func (t *TUI) Start() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.mu.Unlock()

	go func() {
		for msg := range t.updates {
			t.program.Send(msg)
		}
	}()

	_, err := t.program.Run()
	return err
}

// send drops the update if the TUI is behind
func (t *TUI) send(msg tea.Msg) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.updates <- msg:
	default:
	}
}

// UpdateStatus forwards a status snapshot
func (t *TUI) UpdateStatus(s follower.Snapshot) { t.send(StatusMsg(s)) }

// UpdateCycle forwards a completed cycle
func (t *TUI) UpdateCycle(r follower.CycleReport) { t.send(CycleMsg(r)) }

// UpdatePeer forwards the current time source
func (t *TUI) UpdatePeer(peer string) { t.send(PeerMsg(peer)) }

// UpdateReference forwards an NTP cross-check delta
func (t *TUI) UpdateReference(delta time.Duration) { t.send(ReferenceMsg(delta)) }

// Stop stops the TUI
func (t *TUI) Stop() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	started := t.started
	close(t.updates)
	t.mu.Unlock()

	if started {
		t.program.Quit()
	}
}

// QuitChan returns the channel that signals when the user wants to quit
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}

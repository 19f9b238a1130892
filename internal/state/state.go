// Package state implements the connection lifecycle state machine.
// Illegal (state, event) combinations are rejected by returning
// false rather than by error; Closed is terminal.
package state

import (
	"fmt"
	"sync"

	"github.com/gftdcojp/gonats/internal/wire"
)

// Kind enumerates the lifecycle states.
type Kind int

const (
	Disconnected Kind = iota
	Connecting
	TLSHandshake
	Connected
	Reconnecting
	Draining
	Closed
)

func (k Kind) String() string {
	switch k {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case TLSHandshake:
		return "tls_handshake"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(k))
}

// Event is a lifecycle transition trigger.
type Event int

const (
	EvConnect Event = iota
	EvTLSRequired
	EvTLSComplete
	EvConnected
	EvReconnecting
	EvDisconnected
	EvDrain
	EvClose
)

func (e Event) String() string {
	switch e {
	case EvConnect:
		return "connect"
	case EvTLSRequired:
		return "tls_required"
	case EvTLSComplete:
		return "tls_complete"
	case EvConnected:
		return "connected"
	case EvReconnecting:
		return "reconnecting"
	case EvDisconnected:
		return "disconnected"
	case EvDrain:
		return "drain"
	case EvClose:
		return "close"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Machine tracks the current state plus the payloads attached to it:
// the server INFO while Connected, the attempt counter while
// Reconnecting.
type Machine struct {
	mu      sync.Mutex
	kind    Kind
	info    *wire.ServerInfo
	attempt int
}

// New returns a machine in Disconnected.
func New() *Machine {
	return &Machine{kind: Disconnected}
}

// Kind returns the current state.
func (m *Machine) Kind() Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind
}

// ServerInfo returns the INFO payload attached to Connected, or nil.
func (m *Machine) ServerInfo() *wire.ServerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// Attempt returns the counter attached to Reconnecting, or 0.
func (m *Machine) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// IsActive reports whether in-flight traffic may continue:
// Connected or Draining.
func (m *Machine) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind == Connected || m.kind == Draining
}

// CanAcceptOperations reports whether new operations may start: only
// Connected.
func (m *Machine) CanAcceptOperations() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind == Connected
}

// Apply attempts a transition and reports whether it was taken.
// Connected events carry the server info; Reconnecting events carry
// the attempt number.
func (m *Machine) Apply(ev Event, info *wire.ServerInfo, attempt int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := transition(m.kind, ev)
	if !ok {
		return false
	}
	m.set(next, info, attempt)
	return true
}

// ForceSet overrides the current state for error recovery. It still
// refuses to leave Closed.
func (m *Machine) ForceSet(kind Kind, info *wire.ServerInfo, attempt int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kind == Closed {
		return false
	}
	m.set(kind, info, attempt)
	return true
}

func (m *Machine) set(kind Kind, info *wire.ServerInfo, attempt int) {
	m.kind = kind
	switch kind {
	case Connected:
		m.info = info
		m.attempt = 0
	case Reconnecting:
		m.info = nil
		m.attempt = attempt
	default:
		m.info = nil
		m.attempt = 0
	}
}

func transition(from Kind, ev Event) (Kind, bool) {
	switch from {
	case Disconnected:
		switch ev {
		case EvConnect:
			return Connecting, true
		case EvClose:
			return Closed, true
		}
	case Connecting:
		switch ev {
		case EvTLSRequired:
			return TLSHandshake, true
		case EvConnected:
			return Connected, true
		case EvDisconnected:
			return Disconnected, true
		case EvClose:
			return Closed, true
		}
	case TLSHandshake:
		switch ev {
		case EvTLSComplete:
			return Connecting, true
		case EvDisconnected:
			return Disconnected, true
		case EvClose:
			return Closed, true
		}
	case Connected:
		switch ev {
		case EvDisconnected:
			return Disconnected, true
		case EvReconnecting:
			return Reconnecting, true
		case EvDrain:
			return Draining, true
		case EvClose:
			return Closed, true
		}
	case Reconnecting:
		switch ev {
		case EvConnected:
			return Connected, true
		case EvReconnecting:
			return Reconnecting, true
		case EvDisconnected:
			return Disconnected, true
		case EvClose:
			return Closed, true
		}
	case Draining:
		switch ev {
		case EvDisconnected:
			return Disconnected, true
		case EvClose:
			return Closed, true
		}
	case Closed:
		// Terminal.
	}
	return from, false
}

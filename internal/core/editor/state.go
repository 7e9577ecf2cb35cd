package editor

import (
	"fmt"
	"sync"
)

// Status is the load state of an editing session or of any view backed by a
// remote call (route list, map region, conformance request).
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// transitions lists the allowed moves out of each status.
var transitions = map[Status][]Status{
	StatusIdle:    {StatusLoading},
	StatusLoading: {StatusReady, StatusError, StatusIdle},
	StatusReady:   {StatusLoading, StatusIdle},
	StatusError:   {StatusLoading, StatusIdle},
}

// Machine is a small typed state machine. It is safe for concurrent use.
type Machine struct {
	mu     sync.RWMutex
	status Status
	err    error
	label  string
}

// NewMachine returns a machine in StatusIdle.
func NewMachine() *Machine {
	return &Machine{status: StatusIdle}
}

// State is a consistent read of the machine.
type State struct {
	Status Status `json:"status"`
	Label  string `json:"label,omitempty"`
	Error  string `json:"error,omitempty"`
}

// State returns the current status, the label of the work in progress and
// the last error message.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := State{Status: m.status, Label: m.label}
	if m.err != nil {
		s.Error = m.err.Error()
	}
	return s
}

// Status returns the current status.
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Machine) move(to Status) error {
	for _, allowed := range transitions[m.status] {
		if allowed == to {
			m.status = to
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", m.status, to)
}

// Begin enters StatusLoading for the named unit of work.
func (m *Machine) Begin(label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.move(StatusLoading); err != nil {
		return err
	}
	m.label = label
	m.err = nil
	return nil
}

// Succeed moves from StatusLoading to StatusReady.
func (m *Machine) Succeed() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.move(StatusReady); err != nil {
		return err
	}
	m.label = ""
	return nil
}

// Fail moves from StatusLoading to StatusError and keeps err.
func (m *Machine) Fail(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if terr := m.move(StatusError); terr != nil {
		return terr
	}
	m.label = ""
	m.err = err
	return nil
}

// Reset returns to StatusIdle and forgets any error.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusIdle {
		return nil
	}
	if err := m.move(StatusIdle); err != nil {
		return err
	}
	m.label = ""
	m.err = nil
	return nil
}

package lifecycle

import "sync"

// Phase is the connection phase of the supervised session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConnecting Phase = "connecting"
	PhaseConnected  Phase = "connected"
)

// Action is the recovery step a close event requires from the
// controller. The machine decides; the controller executes.
type Action int

const (
	// ActionNone: the event is handshake noise or a recovery is
	// already underway; do nothing.
	ActionNone Action = iota
	// ActionReconnect: schedule a single reconnect attempt.
	ActionReconnect
	// ActionReset: purge credentials, then schedule a reconnect.
	ActionReset
)

// Machine holds the phase together with its latched recovery guards as
// one record, so the legality of every transition is decided under a
// single lock instead of scattered flag checks.
//
// resetInProgress latches when a forced logout starts a destructive
// reset and releases only on the next successful connect, so repeated
// logout notifications cannot purge credentials twice.
// reconnectScheduled latches while a reconnect timer is outstanding,
// so each disconnect episode schedules at most one attempt.
type Machine struct {
	mu                 sync.Mutex
	phase              Phase
	resetInProgress    bool
	reconnectScheduled bool
}

// NewMachine creates a machine in the idle phase with no guards set.
func NewMachine() *Machine {
	return &Machine{phase: PhaseIdle}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// BeginConnect moves idle to connecting. Reports false if a connect is
// already in flight or established.
func (m *Machine) BeginConnect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseIdle {
		return false
	}
	m.phase = PhaseConnecting
	return true
}

// Connected records a successful open: phase becomes connected and
// both guards release.
func (m *Machine) Connected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = PhaseConnected
	m.resetInProgress = false
	m.reconnectScheduled = false
}

// CloseReceived classifies a transport close notification.
//
// A non-logout close during the connecting phase is handshake noise
// and is ignored; so is any close while a reconnect is already
// scheduled. Otherwise the phase flips to connecting immediately (so a
// concurrent close cannot double-schedule) and one reconnect is owed.
//
// A forced logout is ignored while a reset is underway; otherwise it
// latches the reset guard, drops the phase to idle, and owes the
// caller a credential purge plus one reconnect.
func (m *Machine) CloseReceived(loggedOut bool) Action {
	m.mu.Lock()
	defer m.mu.Unlock()

	if loggedOut {
		if m.resetInProgress {
			return ActionNone
		}
		m.resetInProgress = true
		m.reconnectScheduled = true
		m.phase = PhaseIdle
		return ActionReset
	}

	if m.phase == PhaseConnecting || m.reconnectScheduled {
		return ActionNone
	}
	m.reconnectScheduled = true
	m.phase = PhaseConnecting
	return ActionReconnect
}

// ConnectFailed records a failed connect attempt. Reports whether a
// new attempt should be scheduled (at most one outstanding).
func (m *Machine) ConnectFailed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseConnected || m.reconnectScheduled {
		return false
	}
	m.reconnectScheduled = true
	return true
}

// ReconnectDue is called when a reconnect timer fires. It releases the
// schedule guard and reports whether the attempt should proceed; a
// session that reconnected on its own in the meantime makes the timer
// a no-op.
func (m *Machine) ReconnectDue() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnectScheduled = false
	if m.phase == PhaseConnected {
		return false
	}
	m.phase = PhaseConnecting
	return true
}

// ResetInProgress reports whether a destructive reset is underway.
func (m *Machine) ResetInProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetInProgress
}

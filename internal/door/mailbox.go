package door

import "sync"

// Mailbox is a single-slot command inbox with last-write-wins semantics.
//
// Any number of goroutines may Put; only the control loop Takes. A command
// that has not been taken when the next one arrives is discarded. This is
// the contract, not a queue: callers wanting a specific outcome should send
// open or close, which are idempotent.
type Mailbox struct {
	mu      sync.Mutex
	cmd     Command
	pending bool
}

// Put stores cmd, overwriting any unconsumed command. It reports whether a
// pending command was replaced.
func (m *Mailbox) Put(cmd Command) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	replaced := m.pending
	m.cmd = cmd
	m.pending = true
	return replaced
}

// Take removes and returns the pending command, if any.
func (m *Mailbox) Take() (Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.pending {
		return "", false
	}
	cmd := m.cmd
	m.cmd = ""
	m.pending = false
	return cmd, true
}

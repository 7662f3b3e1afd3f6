package door

import (
	"context"
	"sync"
)

// Publisher is a single-slot latest-value register with change notification.
//
// The control loop is the only writer. Subscribers that fall behind see only
// the most recent value; there is no backlog.
type Publisher struct {
	mu      sync.RWMutex
	state   State
	version uint64

	// changed is closed and replaced on every distinct publish.
	changed chan struct{}
}

// NewPublisher creates a publisher holding initial.
func NewPublisher(initial State) *Publisher {
	return &Publisher{
		state:   initial,
		version: 1,
		changed: make(chan struct{}),
	}
}

// Publish stores s and wakes subscribers. It returns false without notifying
// anyone if s equals the current value.
func (p *Publisher) Publish(s State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s == p.state {
		return false
	}
	p.state = s
	p.version++
	close(p.changed)
	p.changed = make(chan struct{})
	return true
}

// Current returns the most recently published state.
func (p *Publisher) Current() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Subscribe returns an independent subscription. Its first Next returns the
// current value immediately.
func (p *Publisher) Subscribe() *Subscription {
	return &Subscription{p: p}
}

func (p *Publisher) snapshot() (State, uint64, chan struct{}) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state, p.version, p.changed
}

// Subscription tracks the last version a reader has seen.
//
// A Subscription is not safe for concurrent use; give each reader its own.
// Dropping it has no effect on the publisher.
type Subscription struct {
	p    *Publisher
	seen uint64
}

// closed is returned by Ready when an unseen value is already available.
var closed = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Ready returns a channel that is closed once Next would not block.
func (s *Subscription) Ready() <-chan struct{} {
	_, version, changed := s.p.snapshot()
	if version != s.seen {
		return closed
	}
	return changed
}

// Next returns the latest value not yet seen by this subscription, waiting
// for the next distinct publish if necessary.
func (s *Subscription) Next(ctx context.Context) (State, error) {
	for {
		state, version, changed := s.p.snapshot()
		if version != s.seen {
			s.seen = version
			return state, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return State{}, ctx.Err()
		}
	}
}

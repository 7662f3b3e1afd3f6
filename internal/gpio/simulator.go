package gpio

import (
	"sync"
	"time"
)

// SimulatorConfig configures a Simulator.
type SimulatorConfig struct {
	// ExpectedShutTime is the time for one full traverse.
	ExpectedShutTime time.Duration

	// ActiveLow matches the coupler polarity used by the controller.
	ActiveLow bool

	// Position is the starting position, 0.0 closed to 1.0 open.
	Position float64

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Simulator models a door opener driven by a toggle relay.
//
// Each activation of the coupler advances the opener's cycle: a moving door
// stops; a stopped door starts up when fully closed, down when fully open
// and otherwise in the opposite direction of its last travel (up if it has
// never moved). The door travels at 1/ExpectedShutTime per second and stops
// at either end. The limit switches assert exactly at 0.0 and 1.0.
//
// Time is advanced lazily whenever a pin is accessed, so driving the
// simulator with an injected clock is fully deterministic.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Simulator struct {
	mu sync.Mutex

	speed     float64 // fraction per second
	activeLow bool
	now       func() time.Time

	position float64
	velocity float64
	lastDir  float64
	active   bool
	last     time.Time
	presses  int
}

// NewSimulator creates a Simulator at the configured position.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	speed := 0.0
	if cfg.ExpectedShutTime > 0 {
		speed = 1 / cfg.ExpectedShutTime.Seconds()
	}
	return &Simulator{
		speed:     speed,
		activeLow: cfg.ActiveLow,
		now:       cfg.Now,
		position:  clampUnit(cfg.Position),
		last:      cfg.Now(),
	}
}

// Pins exposes the simulator as limit inputs and a coupler output.
func (s *Simulator) Pins() *Pins {
	return &Pins{
		CloseLimit: simLimit{sim: s, atOpen: false},
		OpenLimit:  simLimit{sim: s, atOpen: true},
		Coupler:    simCoupler{sim: s},
	}
}

// Position returns the simulated position.
func (s *Simulator) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return s.position
}

// Moving reports whether the simulated motor is running.
func (s *Simulator) Moving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return s.velocity != 0
}

// Presses returns the number of coupler activations seen.
func (s *Simulator) Presses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presses
}

func (s *Simulator) limit(atOpen bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	if atOpen {
		return s.position >= 1
	}
	return s.position <= 0
}

func (s *Simulator) setCoupler(high bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()

	active := high != s.activeLow
	if active && !s.active {
		s.presses++
		s.toggle()
	}
	s.active = active
}

// toggle advances the opener's cycle by one press.
func (s *Simulator) toggle() {
	if s.velocity != 0 {
		s.velocity = 0
		return
	}

	switch {
	case s.position <= 0:
		s.velocity = s.speed
	case s.position >= 1:
		s.velocity = -s.speed
	case s.lastDir > 0:
		s.velocity = -s.speed
	default:
		s.velocity = s.speed
	}
	s.lastDir = s.velocity
}

// advance integrates motion up to the current time. Callers hold mu.
func (s *Simulator) advance() {
	now := s.now()
	dt := now.Sub(s.last).Seconds()
	s.last = now
	if dt <= 0 || s.velocity == 0 {
		return
	}

	s.position += s.velocity * dt
	if s.position <= 0 {
		s.position = 0
		s.velocity = 0
	}
	if s.position >= 1 {
		s.position = 1
		s.velocity = 0
	}
}

type simLimit struct {
	sim    *Simulator
	atOpen bool
}

func (l simLimit) Asserted() (bool, error) {
	return l.sim.limit(l.atOpen), nil
}

type simCoupler struct {
	sim *Simulator
}

func (c simCoupler) Set(high bool) error {
	c.sim.setCoupler(high)
	return nil
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

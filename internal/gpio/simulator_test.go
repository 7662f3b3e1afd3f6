package gpio

import (
	"math"
	"testing"
	"time"

	"github.com/elliotnash/piopener/internal/door"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func press(t *testing.T, p *Pins) {
	t.Helper()
	if err := p.Coupler.Set(true); err != nil {
		t.Fatalf("Set(true) error = %v", err)
	}
	if err := p.Coupler.Set(false); err != nil {
		t.Fatalf("Set(false) error = %v", err)
	}
}

func asserted(t *testing.T, in door.Input) bool {
	t.Helper()
	v, err := in.Asserted()
	if err != nil {
		t.Fatalf("Asserted() error = %v", err)
	}
	return v
}

// ─── Kinematics ─────────────────────────────────────────────────────────────

func TestSimulator_LimitsAtEnds(t *testing.T) {
	clock := newFakeClock()

	closed := NewSimulator(SimulatorConfig{ExpectedShutTime: 10 * time.Second, Now: clock.Now}).Pins()
	if !asserted(t, closed.CloseLimit) || asserted(t, closed.OpenLimit) {
		t.Error("door at 0.0: want only the close limit asserted")
	}

	open := NewSimulator(SimulatorConfig{ExpectedShutTime: 10 * time.Second, Position: 1, Now: clock.Now}).Pins()
	if asserted(t, open.CloseLimit) || !asserted(t, open.OpenLimit) {
		t.Error("door at 1.0: want only the open limit asserted")
	}

	mid := NewSimulator(SimulatorConfig{ExpectedShutTime: 10 * time.Second, Position: 0.5, Now: clock.Now}).Pins()
	if asserted(t, mid.CloseLimit) || asserted(t, mid.OpenLimit) {
		t.Error("door at 0.5: want neither limit asserted")
	}
}

func TestSimulator_ToggleCycle(t *testing.T) {
	clock := newFakeClock()
	sim := NewSimulator(SimulatorConfig{ExpectedShutTime: 10 * time.Second, Now: clock.Now})
	pins := sim.Pins()

	press(t, pins)
	clock.Advance(4 * time.Second)
	if got := sim.Position(); math.Abs(got-0.4) > 1e-9 {
		t.Fatalf("Position() = %v, want 0.4 after moving up for 4s", got)
	}

	press(t, pins)
	clock.Advance(2 * time.Second)
	if sim.Moving() {
		t.Fatal("Moving() = true after a stop press")
	}
	if got := sim.Position(); math.Abs(got-0.4) > 1e-9 {
		t.Fatalf("Position() = %v, want 0.4 while stopped", got)
	}

	// Last travel was up, so the next press reverses.
	press(t, pins)
	clock.Advance(time.Second)
	if got := sim.Position(); math.Abs(got-0.3) > 1e-9 {
		t.Errorf("Position() = %v, want 0.3 after reversing", got)
	}
	if sim.Presses() != 3 {
		t.Errorf("Presses() = %d, want 3", sim.Presses())
	}
}

func TestSimulator_StopsAtLimit(t *testing.T) {
	clock := newFakeClock()
	sim := NewSimulator(SimulatorConfig{ExpectedShutTime: 10 * time.Second, Position: 1, Now: clock.Now})
	pins := sim.Pins()

	press(t, pins)
	clock.Advance(15 * time.Second)

	if got := sim.Position(); got != 0 {
		t.Errorf("Position() = %v, want 0", got)
	}
	if sim.Moving() {
		t.Error("Moving() = true at the close limit")
	}
	if !asserted(t, pins.CloseLimit) {
		t.Error("close limit not asserted at 0.0")
	}
}

func TestSimulator_ActiveLow(t *testing.T) {
	clock := newFakeClock()
	sim := NewSimulator(SimulatorConfig{ExpectedShutTime: 10 * time.Second, ActiveLow: true, Now: clock.Now})
	pins := sim.Pins()

	// Idle level for an active-low relay is high.
	_ = pins.Coupler.Set(true)
	if sim.Presses() != 0 {
		t.Fatalf("Presses() = %d after idle high, want 0", sim.Presses())
	}
	_ = pins.Coupler.Set(false)
	_ = pins.Coupler.Set(true)
	if sim.Presses() != 1 {
		t.Errorf("Presses() = %d, want 1", sim.Presses())
	}
}

// ─── Controller against the simulator ───────────────────────────────────────

type rig struct {
	t     *testing.T
	clock *fakeClock
	sim   *Simulator
	ctrl  *door.Controller
	cfg   door.Config
}

func newRig(t *testing.T, position float64) *rig {
	t.Helper()

	cfg := door.Config{
		PollInterval:     100 * time.Millisecond,
		ExpectedShutTime: 10 * time.Second,
		Cooldown:         3 * time.Second,
		PulseTicks:       2,
		RestTicks:        5,
	}
	clock := newFakeClock()
	sim := NewSimulator(SimulatorConfig{ExpectedShutTime: cfg.ExpectedShutTime, Position: position, Now: clock.Now})
	pins := sim.Pins()

	ctrl, err := door.New(door.Options{
		Config:     cfg,
		CloseLimit: pins.CloseLimit,
		OpenLimit:  pins.OpenLimit,
		Coupler:    pins.Coupler,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("door.New() error = %v", err)
	}
	return &rig{t: t, clock: clock, sim: sim, ctrl: ctrl, cfg: cfg}
}

// run steps the controller for d of simulated time.
func (r *rig) run(d time.Duration) door.State {
	var s door.State
	for elapsed := time.Duration(0); elapsed < d; elapsed += r.cfg.PollInterval {
		r.clock.Advance(r.cfg.PollInterval)
		s = r.ctrl.Step(r.clock.Now())
	}
	return s
}

func (r *rig) submit(cmd door.Command) {
	r.t.Helper()
	if err := r.ctrl.Submit(cmd); err != nil {
		r.t.Fatalf("Submit(%q) error = %v", cmd, err)
	}
}

func TestRig_OpenThenClose(t *testing.T) {
	r := newRig(t, 0)

	r.submit(door.CommandOpen)
	s := r.run(12 * time.Second)
	want := door.State{Status: door.StatusOpen, Setpoint: door.SetpointOpen, Position: 1}
	if s != want {
		t.Fatalf("after open: %+v, want %+v", s, want)
	}
	if r.sim.Presses() != 1 {
		t.Errorf("Presses() = %d, want 1", r.sim.Presses())
	}

	r.submit(door.CommandClose)
	s = r.run(12 * time.Second)
	want = door.State{Status: door.StatusClosed, Setpoint: door.SetpointClosed, Position: 0}
	if s != want {
		t.Errorf("after close: %+v, want %+v", s, want)
	}
	if r.sim.Presses() != 2 {
		t.Errorf("Presses() = %d, want 2", r.sim.Presses())
	}
}

func TestRig_ReverseMidway(t *testing.T) {
	r := newRig(t, 0)

	r.submit(door.CommandOpen)
	r.run(4 * time.Second)

	r.submit(door.CommandClose)
	s := r.run(8 * time.Second)

	if s.Status != door.StatusClosed {
		t.Errorf("Status = %q, want closed", s.Status)
	}
	if r.sim.Position() != 0 {
		t.Errorf("simulated Position() = %v, want 0", r.sim.Position())
	}
	if r.sim.Presses() != 3 {
		t.Errorf("Presses() = %d, want 3", r.sim.Presses())
	}
}

func TestRig_OpenAfterStopOnTheWayUp(t *testing.T) {
	r := newRig(t, 0)

	r.submit(door.CommandOpen)
	r.run(3 * time.Second)
	r.submit(door.CommandToggle)
	s := r.run(2 * time.Second)
	if s.Status != door.StatusAjar {
		t.Fatalf("after toggle: Status = %q, want ajar", s.Status)
	}
	if r.sim.Moving() {
		t.Fatal("simulated door still moving after stop")
	}
	if diff := math.Abs(s.Position - r.sim.Position()); diff > 0.05 {
		t.Errorf("estimated Position = %v, simulated %v", s.Position, r.sim.Position())
	}

	r.submit(door.CommandOpen)
	s = r.run(12 * time.Second)

	if s.Status != door.StatusOpen || s.Setpoint != door.SetpointOpen {
		t.Errorf("State = %+v, want open/open", s)
	}
	if r.sim.Position() != 1 {
		t.Errorf("simulated Position() = %v, want 1", r.sim.Position())
	}
	if r.sim.Presses() != 5 {
		t.Errorf("Presses() = %d, want 1 + 1 + 3", r.sim.Presses())
	}
}

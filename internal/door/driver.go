package door

// Output is the coupler relay. Set drives the physical pin level.
type Output interface {
	Set(high bool) error
}

// Driver owns the FIFO queue of pulse events for the coupler.
//
// Each call to Tick advances by one tick. An event occupies the coupler for
// its Ticks count before the next one is popped. With an empty queue the
// output holds its last level.
type Driver struct {
	out       Output
	activeLow bool

	queue     []PulseEvent
	remaining int
	level     Level

	// dirty is set when the last write of level failed or nothing has been
	// written yet.
	dirty bool
}

// NewDriver creates a driver for out. activeLow maps LevelActive to a
// physical low.
func NewDriver(out Output, activeLow bool) *Driver {
	return &Driver{
		out:       out,
		activeLow: activeLow,
		level:     LevelInactive,
		dirty:     true,
	}
}

// Enqueue appends events behind anything already queued.
func (d *Driver) Enqueue(events ...PulseEvent) {
	d.queue = append(d.queue, events...)
}

// Tick applies the current event for one tick.
//
// A write failure is returned but the tick is still consumed; the level is
// written again on the next tick.
func (d *Driver) Tick() error {
	if d.remaining == 0 && len(d.queue) > 0 {
		next := d.queue[0]
		d.queue[0] = PulseEvent{}
		d.queue = d.queue[1:]

		d.remaining = max(next.Ticks, 1)
		if next.Level != d.level {
			d.level = next.Level
			d.dirty = true
		}
	}

	if d.remaining > 0 {
		d.remaining--
	}

	if !d.dirty {
		return nil
	}
	if err := d.out.Set(d.physical(d.level)); err != nil {
		return err
	}
	d.dirty = false
	return nil
}

// Level returns the logical level most recently applied.
func (d *Driver) Level() Level {
	return d.level
}

// Pending returns the number of ticks until the queue is drained.
func (d *Driver) Pending() int {
	n := d.remaining
	for _, ev := range d.queue {
		n += max(ev.Ticks, 1)
	}
	return n
}

// Idle reports whether no event is in progress or queued.
func (d *Driver) Idle() bool {
	return d.remaining == 0 && len(d.queue) == 0
}

func (d *Driver) physical(level Level) bool {
	return (level == LevelActive) != d.activeLow
}

package door

import "time"

// Timing holds the physical constants the estimator needs.
type Timing struct {
	// ExpectedShutTime is how long the door takes to travel its full range.
	ExpectedShutTime time.Duration

	// Cooldown is the window after a full-reach event during which an
	// assertion of the opposite limit is treated as switch noise.
	Cooldown time.Duration
}

// Estimate produces the next state from one limit switch reading.
//
// The rules, in order:
//   - both limits asserted: sensor contradiction, status becomes ajar and
//     position and setpoint are kept
//   - close only: closed at 0.0 heading down, unless the last full-open
//     event is within the cooldown window, in which case nothing changes
//   - open only: the mirror image, gated by the last full-close event
//   - neither: dead reckoning along the tracked direction, unless a press
//     stopped the door
//
// Parameters:
//   - limits: the current switch reading
//   - prior: the state produced by the previous tick
//   - track: direction and full-reach timestamps from the previous tick
//   - elapsed: time since the previous estimate
//   - now: timestamp recorded when a limit is reached
//   - timing: traversal time and cooldown window
//
// Returns:
//   - State: the next state, position clamped to [0, 1]
//   - Tracking: updated direction and timestamps
func Estimate(limits Limits, prior State, track Tracking, elapsed time.Duration, now time.Time, timing Timing) (State, Tracking) {
	next := prior

	switch {
	case limits.Close && limits.Open:
		next.Status = StatusAjar

	case limits.Close:
		if withinCooldown(now, track.LastFullOpen, timing.Cooldown) {
			return prior, track
		}
		next.Status = StatusClosed
		next.Position = 0
		track.Direction = DirectionDown
		track.Stopped = false
		track.LastFullClose = now

	case limits.Open:
		if withinCooldown(now, track.LastFullClose, timing.Cooldown) {
			return prior, track
		}
		next.Status = StatusOpen
		next.Position = 1
		track.Direction = DirectionUp
		track.Stopped = false
		track.LastFullOpen = now

	default:
		if !track.Stopped {
			next.Position += float64(track.Direction) * travelled(elapsed, timing.ExpectedShutTime)
		}
		switch prior.Status {
		case StatusClosed, StatusMovingUp:
			next.Status = StatusMovingUp
		case StatusOpen, StatusMovingDown:
			next.Status = StatusMovingDown
		}
	}

	next.Position = clamp(next.Position)
	return next, track
}

// withinCooldown reports whether now falls inside the cooldown window that
// started at event. A zero event time never gates.
func withinCooldown(now, event time.Time, cooldown time.Duration) bool {
	if event.IsZero() {
		return false
	}
	return now.Sub(event) < cooldown
}

// travelled converts elapsed time into a fraction of the full traverse.
func travelled(elapsed, expected time.Duration) float64 {
	if expected <= 0 || elapsed <= 0 {
		return 0
	}
	return elapsed.Seconds() / expected.Seconds()
}

func clamp(position float64) float64 {
	switch {
	case position < 0:
		return 0
	case position > 1:
		return 1
	default:
		return position
	}
}

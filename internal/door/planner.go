package door

import (
	"fmt"
	"time"
)

// Widths are the press and rest lengths in ticks.
type Widths struct {
	// Pulse is the number of ticks the coupler is held active for one
	// press, and then held inactive before the next step.
	Pulse int

	// Rest is the number of inactive ticks inserted between presses that
	// must reverse the opener.
	Rest int
}

// Plan is the outcome of planning one command.
type Plan struct {
	// Presses is the number of coupler presses in Events.
	Presses int

	// Events is the pulse sequence to enqueue, in order.
	Events []PulseEvent

	// State is the provisional state to merge over the estimate. Position
	// is carried through unchanged.
	State State

	// Tracking carries the updated direction, the stopped flag and, when the
	// door is sent towards a limit, the optimistic full-reach timestamp.
	Tracking Tracking
}

// step is one element of a press sequence.
type step int

const (
	stepPress step = iota
	stepRest
)

// Press sequences for the toggle actuator.
var (
	sequenceNone = []step{}

	// sequenceSingle starts or stops the motor.
	sequenceSingle = []step{stepPress}

	// sequenceReverse stops a moving door, waits, then starts it the other way.
	sequenceReverse = []step{stepPress, stepRest, stepPress}

	// sequenceDoubleReverse is used on a stationary door whose next press
	// would move it the wrong way: start, stop, wait, start again.
	sequenceDoubleReverse = []step{stepPress, stepPress, stepRest, stepPress}
)

// transition is one row of the (command, status, direction) table.
type transition struct {
	steps     []step
	status    Status
	setpoint  Setpoint
	direction Direction
	stopped   bool
}

// PlanCommand maps a command onto coupler presses for the current state.
//
// Parameters:
//   - cmd: the requested command
//   - current: the state after this tick's estimate
//   - track: direction and timestamps after this tick's estimate
//   - widths: press and rest widths in ticks
//   - now: timestamp for the optimistic full-reach bookkeeping
//
// Returns:
//   - Plan: pulse events and the provisional state
//   - error: ErrUnknownCommand for anything but toggle, open or close
func PlanCommand(cmd Command, current State, track Tracking, widths Widths, now time.Time) (Plan, error) {
	t, err := transitionFor(cmd, current.Status, track.Direction)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Events: lower(t.steps, widths),
		State: State{
			Status:   t.status,
			Setpoint: t.setpoint,
			Position: current.Position,
		},
		Tracking: track,
	}
	for _, s := range t.steps {
		if s == stepPress {
			plan.Presses++
		}
	}

	if plan.Presses > 0 {
		plan.Tracking.Direction = t.direction
		plan.Tracking.Stopped = t.stopped
	}
	if plan.Presses > 0 && !t.stopped {
		switch t.direction {
		case DirectionUp:
			plan.Tracking.LastFullOpen = now
		case DirectionDown:
			plan.Tracking.LastFullClose = now
		}
	}

	return plan, nil
}

// transitionFor is the exhaustive transition table.
func transitionFor(cmd Command, status Status, last Direction) (transition, error) {
	switch cmd {
	case CommandToggle:
		return toggle(status, last), nil
	case CommandOpen:
		return seek(DirectionUp, status, last), nil
	case CommandClose:
		return seek(DirectionDown, status, last), nil
	default:
		return transition{}, fmt.Errorf("%w: %q", ErrUnknownCommand, string(cmd))
	}
}

// toggle is a single press. A moving door stops; a stationary door starts
// in the direction the opener's cycle selects next.
func toggle(status Status, last Direction) transition {
	switch status {
	case StatusMovingUp, StatusMovingDown:
		return transition{steps: sequenceSingle, status: StatusAjar, setpoint: SetpointAjar, direction: last, stopped: true}
	case StatusClosed:
		return moving(sequenceSingle, DirectionUp)
	case StatusOpen:
		return moving(sequenceSingle, DirectionDown)
	default:
		if last > 0 {
			return moving(sequenceSingle, DirectionDown)
		}
		return moving(sequenceSingle, DirectionUp)
	}
}

// seek drives the door towards target. Open and close are mirror images.
func seek(target Direction, status Status, last Direction) transition {
	toward, away := StatusMovingUp, StatusMovingDown
	origin, destination := StatusClosed, StatusOpen
	setpoint := SetpointOpen
	if target == DirectionDown {
		toward, away = away, toward
		origin, destination = destination, origin
		setpoint = SetpointClosed
	}

	switch status {
	case destination, toward:
		return transition{steps: sequenceNone, status: status, setpoint: setpoint, direction: last}
	case away:
		return moving(sequenceReverse, target)
	case origin:
		return moving(sequenceSingle, target)
	default:
		if last == target {
			return transition{steps: sequenceDoubleReverse, status: StatusAjar, setpoint: setpoint, direction: target}
		}
		return moving(sequenceSingle, target)
	}
}

// moving is a transition that ends with the door travelling in dir.
func moving(steps []step, dir Direction) transition {
	if dir == DirectionUp {
		return transition{steps: steps, status: StatusMovingUp, setpoint: SetpointOpen, direction: DirectionUp}
	}
	return transition{steps: steps, status: StatusMovingDown, setpoint: SetpointClosed, direction: DirectionDown}
}

// lower expands press/rest steps into pulse events. A press is Pulse ticks
// active followed by Pulse ticks inactive; a rest is Rest ticks inactive.
func lower(steps []step, widths Widths) []PulseEvent {
	events := make([]PulseEvent, 0, 2*len(steps))
	for _, s := range steps {
		switch s {
		case stepPress:
			events = append(events,
				PulseEvent{Level: LevelActive, Ticks: widths.Pulse},
				PulseEvent{Level: LevelInactive, Ticks: widths.Pulse},
			)
		case stepRest:
			events = append(events, PulseEvent{Level: LevelInactive, Ticks: widths.Rest})
		}
	}
	return events
}

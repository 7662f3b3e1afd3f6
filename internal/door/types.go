package door

import (
	"fmt"
	"strings"
	"time"
)

// Status is the observed or estimated condition of the door.
type Status string

const (
	// StatusClosed means the close limit switch is asserted.
	StatusClosed Status = "closed"

	// StatusOpen means the open limit switch is asserted.
	StatusOpen Status = "open"

	// StatusAjar means the door is stationary somewhere in between, its
	// motion is unknown, or both limit switches contradict each other.
	StatusAjar Status = "ajar"

	// StatusMovingUp means the door is assumed to be travelling towards open.
	StatusMovingUp Status = "moving_up"

	// StatusMovingDown means the door is assumed to be travelling towards closed.
	StatusMovingDown Status = "moving_down"
)

// Moving reports whether s is one of the travelling statuses.
func (s Status) Moving() bool {
	return s == StatusMovingUp || s == StatusMovingDown
}

// Setpoint is the last intended end state of the door.
type Setpoint string

const (
	SetpointClosed Setpoint = "closed"
	SetpointOpen   Setpoint = "open"
	SetpointAjar   Setpoint = "ajar"
)

// State is the snapshot published to subscribers.
//
// Position is 0.0 when fully closed and 1.0 when fully open. It is an
// estimate while the door moves and is resynchronised whenever a limit
// switch asserts.
type State struct {
	Status   Status   `json:"status"`
	Setpoint Setpoint `json:"setpoint"`
	Position float64  `json:"position"`
}

// Command is an idempotent request from a caller, not a raw relay pulse.
type Command string

const (
	CommandToggle Command = "toggle"
	CommandOpen   Command = "open"
	CommandClose  Command = "close"
)

// ParseCommand converts a case-insensitive command name to a Command.
func ParseCommand(name string) (Command, error) {
	switch cmd := Command(strings.ToLower(strings.TrimSpace(name))); cmd {
	case CommandToggle, CommandOpen, CommandClose:
		return cmd, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

// Direction is the last known or intended direction of travel.
type Direction int

const (
	DirectionDown Direction = -1
	DirectionNone Direction = 0
	DirectionUp   Direction = 1
)

func (d Direction) String() string {
	switch {
	case d > 0:
		return "up"
	case d < 0:
		return "down"
	default:
		return "none"
	}
}

// Level is the logical level of the coupler output. The physical pin level
// depends on the configured polarity.
type Level int

const (
	LevelInactive Level = iota
	LevelActive
)

func (l Level) String() string {
	if l == LevelActive {
		return "active"
	}
	return "inactive"
}

// PulseEvent holds the coupler at Level for Ticks consecutive ticks.
type PulseEvent struct {
	Level Level
	Ticks int
}

// Tracking is the bookkeeping carried between ticks alongside State.
//
// LastFullOpen and LastFullClose are set when a limit is reached and,
// optimistically, when a command sends the door towards that limit. They
// gate implausible limit assertions during the cooldown window.
//
// Stopped is set when a press halted a moving door. Direction is kept for
// the next tie-break but position is not integrated until a press or a
// limit clears it.
type Tracking struct {
	Direction     Direction
	Stopped       bool
	LastFullOpen  time.Time
	LastFullClose time.Time
}

// Limits is one reading of both limit switches.
type Limits struct {
	Close bool
	Open  bool
}

package history

import "github.com/elliotnash/piopener/internal/door"

// Command sources.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// NewCommandEvent builds a command event against the state the door was in
// when the command arrived.
func NewCommandEvent(doorID string, cmd door.Command, s door.State, source string) *Event {
	return &Event{
		DoorID:   doorID,
		Kind:     KindCommand,
		Command:  string(cmd),
		Status:   string(s.Status),
		Setpoint: string(s.Setpoint),
		Position: s.Position,
		Source:   source,
	}
}

// NewStateEvent builds a state transition event.
func NewStateEvent(doorID string, s door.State) *Event {
	return &Event{
		DoorID:   doorID,
		Kind:     KindState,
		Status:   string(s.Status),
		Setpoint: string(s.Setpoint),
		Position: s.Position,
	}
}

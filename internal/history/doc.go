// Package history stores the door event trail in SQLite.
//
// Two kinds of event are recorded: commands as they arrive at an outer
// surface (API or MQTT) and state transitions as the controller publishes
// them. The trail is read-only history for operators; the controller never
// reads it back to restore state.
package history

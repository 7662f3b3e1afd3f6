package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements and tags written by the client.
const (
	MeasurementDoorState   = "door_state"
	MeasurementDoorCommand = "door_command"

	TagDoorID   = "door_id"
	TagStatus   = "status"
	TagSetpoint = "setpoint"
	TagCommand  = "command"
)

// StateSample is one published door state.
type StateSample struct {
	Status   string
	Setpoint string
	Position float64
	Moving   bool
}

// WriteState records a published door state.
//
// Status and setpoint are tags so dashboards can group by them; position is
// the only continuous field.
//
// Example:
//
//	client.WriteState(influxdb.StateSample{
//	    Status: "moving_up", Setpoint: "open", Position: 0.4, Moving: true,
//	}, time.Now())
func (c *Client) WriteState(s StateSample, at time.Time) {
	c.write(write.NewPointWithMeasurement(MeasurementDoorState).
		AddTag(TagStatus, s.Status).
		AddTag(TagSetpoint, s.Setpoint).
		AddField("position", s.Position).
		AddField("moving", s.Moving).
		SetTime(at))
}

// WriteCommand records a command taken by the control loop and the number
// of relay presses it expanded to. presses is 0 for a no-op command.
func (c *Client) WriteCommand(command string, presses int, at time.Time) {
	c.write(write.NewPointWithMeasurement(MeasurementDoorCommand).
		AddTag(TagCommand, command).
		AddField("presses", presses).
		SetTime(at))
}

// write drops p after Close. The read lock keeps Close from releasing the
// write API underneath it.
func (c *Client) write(p *write.Point) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.open {
		c.writeAPI.WritePoint(p)
	}
}

package broadcast

import (
	"context"
	"time"

	"github.com/elliotnash/piopener/internal/door"
	"github.com/elliotnash/piopener/internal/history"
	"github.com/elliotnash/piopener/internal/infrastructure/influxdb"
)

// JSONPublisher publishes a retained JSON document. *mqtt.Client satisfies it.
type JSONPublisher interface {
	PublishJSON(topic string, v any) error
}

// MQTTSink publishes each state retained on the door's state topic.
type MQTTSink struct {
	client JSONPublisher
	topic  string
}

// NewMQTTSink creates an MQTTSink publishing on topic.
func NewMQTTSink(client JSONPublisher, topic string) *MQTTSink {
	return &MQTTSink{client: client, topic: topic}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// HandleState implements Sink.
func (s *MQTTSink) HandleState(_ context.Context, st door.State) error {
	return s.client.PublishJSON(s.topic, st)
}

// PointWriter writes telemetry points for one door. *influxdb.Client
// satisfies it.
type PointWriter interface {
	WriteState(s influxdb.StateSample, at time.Time)
	WriteCommand(command string, presses int, at time.Time)
}

// InfluxSink writes a door_state point for each state.
type InfluxSink struct {
	writer PointWriter
	now    func() time.Time
}

// NewInfluxSink creates an InfluxSink.
func NewInfluxSink(writer PointWriter) *InfluxSink {
	return &InfluxSink{writer: writer, now: time.Now}
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// HandleState implements Sink. Writes are batched and never fail here;
// delivery errors surface through the client's error callback.
func (s *InfluxSink) HandleState(_ context.Context, st door.State) error {
	s.writer.WriteState(influxdb.StateSample{
		Status:   string(st.Status),
		Setpoint: string(st.Setpoint),
		Position: st.Position,
		Moving:   st.Status.Moving(),
	}, s.now())
	return nil
}

// CommandTelemetry returns a door.Options.OnApplied hook writing a
// door_command point per applied command.
func CommandTelemetry(writer PointWriter) func(door.Applied) {
	return func(a door.Applied) {
		writer.WriteCommand(string(a.Command), a.Presses, a.At)
	}
}

// HistorySink records status and setpoint transitions as history events.
// Position-only updates of a moving door are not recorded.
type HistorySink struct {
	repo   history.Repository
	doorID string

	// last is the most recently recorded state. Only the sink's fan-out
	// goroutine touches it.
	last     door.State
	recorded bool
}

// NewHistorySink creates a HistorySink for doorID.
func NewHistorySink(repo history.Repository, doorID string) *HistorySink {
	return &HistorySink{repo: repo, doorID: doorID}
}

// Name implements Sink.
func (s *HistorySink) Name() string { return "history" }

// HandleState implements Sink. A failed write is retried with the next
// state.
func (s *HistorySink) HandleState(ctx context.Context, st door.State) error {
	if s.recorded && st.Status == s.last.Status && st.Setpoint == s.last.Setpoint {
		return nil
	}
	if err := s.repo.Record(ctx, history.NewStateEvent(s.doorID, st)); err != nil {
		return err
	}
	s.last, s.recorded = st, true
	return nil
}

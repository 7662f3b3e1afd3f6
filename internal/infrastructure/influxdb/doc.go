// Package influxdb writes door telemetry to InfluxDB 2.x.
//
// Two measurements are written, both tagged with the door_id passed to
// Connect:
//
//	door_state    tags: status, setpoint   fields: position, moving
//	door_command  tags: command            fields: presses
//
// Points are batched by the influxdb-client-go write API and written with
// millisecond precision. Batch failures are retried a few times and then
// delivered to the SetOnError callback; writes never block or fail the
// caller.
package influxdb

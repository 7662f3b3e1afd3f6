// Package broadcast connects the door controller to the optional outer
// systems.
//
// A Fanout gives every Sink its own subscription to the controller's state
// feed, so a slow or failing sink only ever delays itself and always resumes
// from the latest state. Sinks exist for MQTT (retained state), InfluxDB
// (telemetry points) and the SQLite history.
//
// CommandHandler is the opposite direction: it turns messages on the MQTT
// command topic into controller submissions.
package broadcast

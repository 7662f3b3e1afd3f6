package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "piopener"

// Topics are one door's MQTT topics.
//
//	topics := mqtt.NewTopics("piopener", "garage")
//	topics.State() // "piopener/garage/state"
type Topics struct {
	Prefix string
	DoorID string
}

// NewTopics returns the topic set for a door. Surrounding slashes are trimmed
// and an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix, doorID string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix, DoorID: strings.Trim(doorID, "/")}
}

// State returns the retained state topic.
//
// Example: piopener/garage/state
func (t Topics) State() string {
	return fmt.Sprintf("%s/%s/state", t.Prefix, t.DoorID)
}

// Command returns the topic the door accepts commands on.
//
// Example: piopener/garage/command
func (t Topics) Command() string {
	return fmt.Sprintf("%s/%s/command", t.Prefix, t.DoorID)
}

// Availability returns the online/offline topic carrying the Last Will.
//
// Example: piopener/garage/availability
func (t Topics) Availability() string {
	return fmt.Sprintf("%s/%s/availability", t.Prefix, t.DoorID)
}

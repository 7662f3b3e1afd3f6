package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elliotnash/piopener/internal/door"
	"github.com/elliotnash/piopener/internal/history"
)

// recordTimeout bounds the history write made for each ingress command.
const recordTimeout = 2 * time.Second

// Submitter accepts commands and exposes the current state.
// *door.Controller satisfies it.
type Submitter interface {
	Submit(cmd door.Command) error
	State() door.State
}

type commandPayload struct {
	Command string `json:"command"`
}

// ParseCommandPayload accepts either a bare command ("open") or a JSON
// object ({"command":"open"}).
func ParseCommandPayload(payload []byte) (door.Command, error) {
	text := strings.TrimSpace(string(payload))
	if strings.HasPrefix(text, "{") {
		var p commandPayload
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return "", fmt.Errorf("decoding command payload: %w", err)
		}
		text = p.Command
	}
	return door.ParseCommand(text)
}

// CommandHandler returns an MQTT message handler that submits commands to
// ctrl. Accepted commands are recorded in repo when it is non-nil.
func CommandHandler(ctrl Submitter, repo history.Repository, doorID string, logger Logger) func(topic string, payload []byte) error {
	if logger == nil {
		logger = nopLogger{}
	}
	return func(topic string, payload []byte) error {
		cmd, err := ParseCommandPayload(payload)
		if err != nil {
			return err
		}
		current := ctrl.State()
		if err := ctrl.Submit(cmd); err != nil {
			return err
		}
		logger.Info("command received", "command", cmd, "source", history.SourceMQTT, "topic", topic)

		if repo != nil {
			ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
			defer cancel()
			if err := repo.Record(ctx, history.NewCommandEvent(doorID, cmd, current, history.SourceMQTT)); err != nil {
				logger.Warn("recording command failed", "command", cmd, "error", err)
			}
		}
		return nil
	}
}

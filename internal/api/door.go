package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/elliotnash/piopener/internal/door"
	"github.com/elliotnash/piopener/internal/history"
)

// historyWriteTimeout bounds recording a command event.
const historyWriteTimeout = 2 * time.Second

// commandResponse is the response body for the command routes.
type commandResponse struct {
	Command door.Command `json:"command"`
}

// commandHandler deposits cmd in the controller mailbox. The command is
// acted on at the next tick, so the response is 202 Accepted.
func (s *Server) commandHandler(cmd door.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.door.Submit(cmd); err != nil {
			s.logger.Error("command rejected", "command", cmd, "error", err)
			writeInternalError(w, "failed to submit command")
			return
		}

		p, _ := principalFrom(r.Context())
		s.logger.Info("command received",
			"command", cmd,
			"source", history.SourceAPI,
			"caller", p.Subject,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		s.recordCommand(r.Context(), cmd)

		writeJSON(w, http.StatusAccepted, commandResponse{Command: cmd})
	}
}

// recordCommand appends cmd to history. Failures are logged only; the
// command has already been accepted.
func (s *Server) recordCommand(ctx context.Context, cmd door.Command) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()

	event := history.NewCommandEvent(s.doorID, cmd, s.door.State(), history.SourceAPI)
	if err := s.history.Record(ctx, event); err != nil {
		s.logger.Warn("failed to record command", "command", cmd, "error", err)
	}
}

// handleStatus returns the most recently published door state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.door.State())
}

// handleHistory returns one page of door events.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeServiceUnavailable(w, "history is not enabled")
		return
	}

	q := r.URL.Query()
	limit, ok := queryInt(q.Get("limit"))
	if !ok {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	offset, ok := queryInt(q.Get("offset"))
	if !ok {
		writeBadRequest(w, "offset must be a non-negative integer")
		return
	}

	kind := history.Kind(q.Get("kind"))
	switch kind {
	case "", history.KindCommand, history.KindState:
	default:
		writeBadRequest(w, "kind must be command or state")
		return
	}

	result, err := s.history.List(r.Context(), history.Filter{
		DoorID: s.doorID,
		Kind:   kind,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list history", "error", err)
		writeInternalError(w, "failed to list history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// queryInt parses an optional non-negative integer query value.
func queryInt(v string) (int, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

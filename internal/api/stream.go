package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elliotnash/piopener/internal/door"
)

// sseKeepAliveInterval is the gap between keep-alive comments on an idle feed.
const sseKeepAliveInterval = time.Second

// handleWatchStatus streams door states as Server-Sent Events: the current
// state first, then every distinct state the controller publishes. Bursts
// are coalesced so a slow client only sees the latest state.
func (s *Server) handleWatchStatus(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	// The server write timeout applies to ordinary requests only.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("failed to clear write deadline for status feed", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Warn("status feed cannot be flushed", "error", err)
		return
	}

	sub := s.door.Subscribe()
	keepAlive := time.NewTicker(sseKeepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	s.logger.Debug("status feed opened", "request_id", ctx.Value(ctxKeyRequestID))
	defer s.logger.Debug("status feed closed", "request_id", ctx.Value(ctxKeyRequestID))

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		case <-sub.Ready():
			state, err := sub.Next(ctx)
			if err != nil {
				return
			}
			if err := writeEvent(w, state); err != nil {
				return
			}
			keepAlive.Reset(sseKeepAliveInterval)
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeEvent writes one state as an SSE data frame.
func writeEvent(w io.Writer, state door.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

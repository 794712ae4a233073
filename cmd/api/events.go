package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"gigflow/notify"
)

// sseChannel adapts a server-sent-events connection to the notify.Channel
// contract. Pushes are buffered; a full buffer counts as a failed delivery
// and the dispatcher reports Skipped.
type sseChannel struct {
	id     string
	events chan notify.HiredEvent
}

func newSSEChannel() *sseChannel {
	return &sseChannel{
		id:     uuid.NewString(),
		events: make(chan notify.HiredEvent, 8),
	}
}

func (c *sseChannel) ID() string { return c.id }

func (c *sseChannel) Push(ctx context.Context, event notify.HiredEvent) error {
	select {
	case c.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("sse: event buffer full")
	}
}

// handleEvents holds the connection open and streams hire notifications for
// the authenticated user. A reconnect replaces the previous registration;
// the stale connection's deferred unregister then becomes a no-op.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SYSTEM_ERROR", "streaming unsupported")
		return
	}

	ch := newSSEChannel()
	s.registry.Register(callerID(r), ch)
	defer s.registry.Unregister(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-ch.events:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: hired\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

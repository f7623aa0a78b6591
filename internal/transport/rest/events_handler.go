package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hordelabs/horde/internal/hub"
	"github.com/hordelabs/horde/internal/middleware"
	"github.com/hordelabs/horde/internal/observability"
	"github.com/hordelabs/horde/internal/transport"
)

const heartbeatInterval = 25 * time.Second

// EventsHandler serves the push subscription: a server-to-client-only event
// stream carrying content-free, category-tagged notifications. Clients must
// tolerate silent drops; the stream is a latency optimization over polling,
// never the source of truth.
type EventsHandler struct {
	hub *hub.Hub
}

func NewEventsHandler(h *hub.Hub) *EventsHandler {
	return &EventsHandler{hub: h}
}

// Subscribe GET /api/events
func (h *EventsHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		transport.WriteError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := h.hub.Subscribe(userID)
	defer h.hub.Unsubscribe(sub)

	log := observability.GetLogger(r.Context())
	log.Info("push subscription opened",
		zap.String("user_id", userID),
		zap.String("subscriber_id", sub.ID),
	)

	fmt.Fprint(w, "retry: 3000\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done():
			// Dropped by the hub (backpressure or shutdown); the client
			// reconnects and re-subscribes.
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case n := <-sub.Events():
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Category, data)
			flusher.Flush()
		}
	}
}

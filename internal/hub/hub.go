// Package hub fans "new activity" notifications out to connected clients.
// Delivery over the push path is at-most-once and best-effort: no open
// subscription means the event is dropped, and correctness rests entirely on
// the clients' polling fallback.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/hordelabs/horde/internal/event"
	"github.com/hordelabs/horde/internal/observability"

	"sync"
)

type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[string]*Subscriber // user id -> subscriber id -> subscriber
	log  *zap.Logger
}

func New(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs: make(map[string]map[string]*Subscriber),
		log:  log,
	}
}

// Subscribe registers a new push channel for the user. A user may hold many
// concurrent subscriptions (one per open client).
func (h *Hub) Subscribe(userID string) *Subscriber {
	s := newSubscriber(userID)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[string]*Subscriber)
	}
	h.subs[userID][s.ID] = s
	h.mu.Unlock()

	observability.PushSubscribersActive.WithLabelValues("horde").Inc()
	return s
}

// Unsubscribe closes and removes the subscription. Safe to call more than
// once and after the hub itself dropped the subscriber.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	removed := false
	if subs, ok := h.subs[s.UserID]; ok {
		if _, ok := subs[s.ID]; ok {
			delete(subs, s.ID)
			removed = true
			if len(subs) == 0 {
				delete(h.subs, s.UserID)
			}
		}
	}
	h.mu.Unlock()

	s.Close()
	if removed {
		observability.PushSubscribersActive.WithLabelValues("horde").Dec()
	}
}

// Dispatch delivers the event to every participant except its sender. Slow
// subscribers are dropped, never waited on.
func (h *Hub) Dispatch(ctx context.Context, env *event.Envelope) {
	h.mu.RLock()
	var targets []*Subscriber
	for _, userID := range env.ParticipantIDs {
		if userID == env.SenderID {
			continue
		}
		for _, s := range h.subs[userID] {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	n := env.Notification()
	for _, s := range targets {
		if s.TrySend(n) {
			observability.EventsDispatchedTotal.WithLabelValues("horde").Inc()
			continue
		}
		observability.EventsDroppedTotal.WithLabelValues("horde").Inc()
		h.log.Warn("push subscriber overran its queue, dropping",
			zap.String("user_id", s.UserID),
			zap.String("subscriber_id", s.ID),
		)
		h.Unsubscribe(s)
	}
}

// SubscriberCount reports the number of open subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, subs := range h.subs {
		n += len(subs)
	}
	return n
}

// CloseAll drops every subscription, typically on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[string]*Subscriber)
	h.mu.Unlock()

	for _, subs := range all {
		for _, s := range subs {
			s.Close()
			observability.PushSubscribersActive.WithLabelValues("horde").Dec()
		}
	}
}

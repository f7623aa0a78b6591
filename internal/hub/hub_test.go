package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hordelabs/horde/internal/event"
)

func newMessageEnvelope(convID, senderID string, participants ...string) *event.Envelope {
	return &event.Envelope{
		Category:       event.CategoryNewMessage,
		ConversationID: convID,
		SenderID:       senderID,
		ParticipantIDs: participants,
		OccurredAt:     time.Now(),
	}
}

func recvNotification(t *testing.T, s *Subscriber) event.Notification {
	t.Helper()
	select {
	case n := <-s.Events():
		return n
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
		return event.Notification{}
	}
}

func TestDispatchFansOutToParticipants(t *testing.T) {
	h := New(nil)
	defer h.CloseAll()

	bob := h.Subscribe("bob")
	carol := h.Subscribe("carol")

	h.Dispatch(context.Background(), newMessageEnvelope("conv-1", "alice", "alice", "bob", "carol"))

	for _, s := range []*Subscriber{bob, carol} {
		n := recvNotification(t, s)
		assert.Equal(t, event.CategoryNewMessage, n.Category)
		assert.Equal(t, "conv-1", n.ConversationID)
	}
}

func TestDispatchSkipsSender(t *testing.T) {
	h := New(nil)
	defer h.CloseAll()

	alice := h.Subscribe("alice")
	bob := h.Subscribe("bob")

	h.Dispatch(context.Background(), newMessageEnvelope("conv-1", "alice", "alice", "bob"))

	recvNotification(t, bob)
	select {
	case <-alice.Events():
		t.Fatal("sender must not receive their own event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchSkipsNonParticipants(t *testing.T) {
	h := New(nil)
	defer h.CloseAll()

	dave := h.Subscribe("dave")

	h.Dispatch(context.Background(), newMessageEnvelope("conv-1", "alice", "alice", "bob"))

	select {
	case <-dave.Events():
		t.Fatal("non-participant must not receive the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMultipleSubscriptionsPerUser(t *testing.T) {
	h := New(nil)
	defer h.CloseAll()

	first := h.Subscribe("bob")
	second := h.Subscribe("bob")
	assert.Equal(t, 2, h.SubscriberCount())

	h.Dispatch(context.Background(), newMessageEnvelope("conv-1", "alice", "alice", "bob"))

	recvNotification(t, first)
	recvNotification(t, second)
}

// A subscriber that stops draining is dropped once its queue overflows, and
// the remaining subscribers keep receiving.
func TestSlowSubscriberDropped(t *testing.T) {
	h := New(nil)
	defer h.CloseAll()

	slow := h.Subscribe("bob")
	healthy := h.Subscribe("carol")
	ctx := context.Background()

	for i := 0; i < sendQueueSize+1; i++ {
		h.Dispatch(ctx, newMessageEnvelope("conv-1", "alice", "alice", "bob"))
	}

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("overflowing subscriber was not closed")
	}
	assert.Equal(t, 1, h.SubscriberCount())

	// carol's subscription is unaffected.
	h.Dispatch(ctx, newMessageEnvelope("conv-2", "alice", "alice", "carol"))
	recvNotification(t, healthy)
}

func TestUnsubscribeIdempotent(t *testing.T) {
	h := New(nil)

	sub := h.Subscribe("bob")
	require.Equal(t, 1, h.SubscriberCount())

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	assert.Equal(t, 0, h.SubscriberCount())

	// Dispatch after unsubscribe is a no-op.
	h.Dispatch(context.Background(), newMessageEnvelope("conv-1", "alice", "alice", "bob"))
}

func TestCloseAll(t *testing.T) {
	h := New(nil)
	subs := []*Subscriber{h.Subscribe("a"), h.Subscribe("b"), h.Subscribe("c")}

	h.CloseAll()
	assert.Equal(t, 0, h.SubscriberCount())
	for _, s := range subs {
		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatal("subscriber not closed")
		}
	}
}

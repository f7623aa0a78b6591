package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBadgesTrackUnreadCounts(t *testing.T) {
	f := newFakeBackend("alice")
	f.inject("conv-1", "bob", "one")
	f.inject("conv-1", "bob", "two")
	f.inject("conv-2", "carol", "hey")

	b := WatchBadges(context.Background(), f, 10*time.Millisecond)
	defer b.Close()

	waitFor(t, func() bool {
		return b.Count("conv-1") == 2 && b.Count("conv-2") == 1
	}, "badges never converged")

	// Reading conv-1 clears its badge on the next refresh.
	_ = f.MarkRead(context.Background(), "conv-1", 2)
	waitFor(t, func() bool { return b.Count("conv-1") == 0 }, "badge never cleared")
	assert.Equal(t, 1, b.Count("conv-2"))
}

func TestSyncerRoutesPushToOpenView(t *testing.T) {
	f := newFakeBackend("alice")

	s := NewSyncer(context.Background(), f, time.Hour)
	defer s.Close()

	// Long poll: only a routed push can refresh the view.
	v := s.Open(context.Background(), "conv-1", ViewOptions{PollInterval: time.Hour})
	waitFor(t, func() bool {
		_, state, _ := v.Snapshot()
		return state == StateSynced
	}, "view never reached synced")

	f.inject("conv-1", "bob", "pushed")
	f.push("conv-1")

	waitFor(t, func() bool {
		entries, _, _ := v.Snapshot()
		return len(entries) == 1
	}, "push never reached the view")
}

func TestSyncerPushRefreshesBadges(t *testing.T) {
	f := newFakeBackend("alice")

	s := NewSyncer(context.Background(), f, time.Hour)
	defer s.Close()

	// Give the badge watcher time to take its initial empty snapshot.
	time.Sleep(20 * time.Millisecond)

	f.inject("conv-1", "bob", "unseen")
	f.push("conv-1")

	waitFor(t, func() bool {
		return s.Badges().Count("conv-1") == 1
	}, "push never refreshed badges")
}

func TestSyncerOpenIsIdempotent(t *testing.T) {
	f := newFakeBackend("alice")
	s := NewSyncer(context.Background(), f, time.Hour)
	defer s.Close()

	a := s.Open(context.Background(), "conv-1", ViewOptions{PollInterval: time.Hour})
	b := s.Open(context.Background(), "conv-1", ViewOptions{PollInterval: time.Hour})
	assert.Same(t, a, b)

	s.CloseView("conv-1")
	c := s.Open(context.Background(), "conv-1", ViewOptions{PollInterval: time.Hour})
	assert.NotSame(t, a, c)
}

type subscribeFailBackend struct {
	*fakeBackend
}

func (b *subscribeFailBackend) Subscribe(ctx context.Context) (<-chan Notification, error) {
	return nil, errors.New("stream unavailable")
}

// A session whose push stream cannot open still converges through polling.
func TestSyncerDegradesToPollOnly(t *testing.T) {
	f := &subscribeFailBackend{fakeBackend: newFakeBackend("alice")}

	s := NewSyncer(context.Background(), f, 10*time.Millisecond)
	defer s.Close()

	v := s.Open(context.Background(), "conv-1", ViewOptions{PollInterval: 10 * time.Millisecond})
	f.inject("conv-1", "bob", "no push needed")

	waitFor(t, func() bool {
		entries, _, _ := v.Snapshot()
		return len(entries) == 1
	}, "poll-only session never converged")
	waitFor(t, func() bool {
		return s.Badges().Count("conv-1") == 0 // view read it; badge clears
	}, "badge never settled")
}

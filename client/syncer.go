package client

import (
	"context"
	"sync"
	"time"
)

// Syncer owns the single push subscription for a session and fans incoming
// notifications out to the open conversation views and the badge watcher.
// If the subscription cannot be opened the session degrades to poll-only;
// every consumer already polls, so nothing else changes.
type Syncer struct {
	backend Backend

	mu     sync.Mutex
	views  map[string]*ConversationView
	badges *Badges

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSyncer starts the push loop and the badge watcher.
func NewSyncer(ctx context.Context, backend Backend, badgePeriod time.Duration) *Syncer {
	ctx, cancel := context.WithCancel(ctx)
	s := &Syncer{
		backend: backend,
		views:   map[string]*ConversationView{},
		badges:  WatchBadges(ctx, backend, badgePeriod),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.loop(ctx)
	return s
}

// Badges exposes the session's unread watcher.
func (s *Syncer) Badges() *Badges { return s.badges }

// Open returns the view for convID, starting one if needed.
func (s *Syncer) Open(ctx context.Context, convID string, opts ViewOptions) *ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.views[convID]; ok {
		return v
	}
	v := OpenConversation(ctx, s.backend, convID, opts)
	s.views[convID] = v
	return v
}

// CloseView stops and forgets the view for convID.
func (s *Syncer) CloseView(convID string) {
	s.mu.Lock()
	v, ok := s.views[convID]
	delete(s.views, convID)
	s.mu.Unlock()
	if ok {
		v.Close()
	}
}

// Close stops the push loop, the badge watcher and every open view.
func (s *Syncer) Close() {
	s.cancel()
	<-s.done
	s.badges.Close()

	s.mu.Lock()
	views := make([]*ConversationView, 0, len(s.views))
	for _, v := range s.views {
		views = append(views, v)
	}
	s.views = map[string]*ConversationView{}
	s.mu.Unlock()
	for _, v := range views {
		v.Close()
	}
}

func (s *Syncer) loop(ctx context.Context) {
	defer close(s.done)

	events, err := s.backend.Subscribe(ctx)
	if err != nil {
		// Poll-only session.
		<-ctx.Done()
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-events:
			if !ok {
				<-ctx.Done()
				return
			}
			s.dispatch(n)
		}
	}
}

func (s *Syncer) dispatch(n Notification) {
	s.mu.Lock()
	v := s.views[n.ConversationID]
	s.mu.Unlock()

	if v != nil {
		v.Notify()
	}
	s.badges.Notify()
}

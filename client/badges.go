package client

import (
	"context"
	"sync"
	"time"
)

// Badges keeps per-conversation unread counts for the conversation list.
// Counts come from the summary endpoint; push events and an ambient poll
// both trigger a refetch, so a dropped event only delays the badge until
// the next tick.
type Badges struct {
	backend Backend
	period  time.Duration

	mu     sync.Mutex
	counts map[string]int

	notify  chan struct{}
	updates chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// WatchBadges starts the unread watcher. period <= 0 defaults to 5s.
func WatchBadges(ctx context.Context, backend Backend, period time.Duration) *Badges {
	if period <= 0 {
		period = defaultPollInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	b := &Badges{
		backend: backend,
		period:  period,
		counts:  map[string]int{},
		notify:  make(chan struct{}, 1),
		updates: make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go b.loop(ctx)
	return b
}

func (b *Badges) Notify() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *Badges) Updates() <-chan struct{} { return b.updates }

func (b *Badges) Close() {
	b.cancel()
	<-b.done
}

// Counts returns a copy of the current badge map.
func (b *Badges) Counts() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.counts))
	for k, v := range b.counts {
		out[k] = v
	}
	return out
}

// Count returns the unread count for one conversation.
func (b *Badges) Count(convID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[convID]
}

func (b *Badges) loop(ctx context.Context) {
	defer close(b.done)

	b.refresh(ctx)

	ticker := time.NewTicker(b.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.refresh(ctx)
		case <-b.notify:
			b.refresh(ctx)
		}
	}
}

func (b *Badges) refresh(ctx context.Context) {
	counts, err := b.backend.UnreadSummary(ctx)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.counts = counts
	b.mu.Unlock()

	select {
	case b.updates <- struct{}{}:
	default:
	}
}

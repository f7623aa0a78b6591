package hub

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hordelabs/horde/internal/event"
)

const sendQueueSize = 32

// Subscriber is one open push channel for one user. Notifications queue on a
// bounded channel; a subscriber that cannot drain it is closed rather than
// allowed to block the append path. A dropped subscriber must re-subscribe.
type Subscriber struct {
	ID     string
	UserID string

	ch     chan event.Notification
	done   chan struct{}
	closed atomic.Int32
}

func newSubscriber(userID string) *Subscriber {
	return &Subscriber{
		ID:     uuid.NewString(),
		UserID: userID,
		ch:     make(chan event.Notification, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Events yields queued notifications. Consumers must also select on Done:
// the channel is never closed, only abandoned.
func (s *Subscriber) Events() <-chan event.Notification {
	return s.ch
}

func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// TrySend enqueues without blocking. On overflow the subscriber is closed
// and false is returned.
func (s *Subscriber) TrySend(n event.Notification) bool {
	if s.closed.Load() == 1 {
		return false
	}
	select {
	case s.ch <- n:
		return true
	default:
		s.Close()
		return false
	}
}

func (s *Subscriber) Close() {
	if !s.closed.CompareAndSwap(0, 1) {
		return
	}
	close(s.done)
}

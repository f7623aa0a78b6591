package client

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State of a ConversationView.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSynced
	StateSending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSynced:
		return "synced"
	case StateSending:
		return "sending"
	default:
		return "unknown"
	}
}

// Entry is one row in the rendered message window. Pending entries are the
// optimistic local echo of an in-flight send; they carry a LocalID instead
// of a server-assigned sequence.
type Entry struct {
	Message Message
	Pending bool
	LocalID string
}

// ViewOptions tune a ConversationView. Zero values get defaults.
type ViewOptions struct {
	PollInterval time.Duration
	WindowSize   int
}

const (
	defaultPollInterval = 5 * time.Second
	defaultWindowSize   = 50
)

// ConversationView keeps a single conversation's message window in sync with
// the server. The authoritative list always comes from a full refetch; the
// pending echo is layered on top and removed once the send resolves, so a
// message never appears twice and a failed send disappears cleanly.
type ConversationView struct {
	backend Backend
	convID  string
	opts    ViewOptions

	mu      sync.Mutex
	state   State
	entries []Message
	pending []Entry
	lastSeq int64
	lastErr error

	notify  chan struct{}
	updates chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// OpenConversation starts a view in StateLoading and begins its sync loop.
func OpenConversation(ctx context.Context, backend Backend, convID string, opts ViewOptions) *ConversationView {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = defaultWindowSize
	}

	ctx, cancel := context.WithCancel(ctx)
	v := &ConversationView{
		backend: backend,
		convID:  convID,
		opts:    opts,
		state:   StateLoading,
		notify:  make(chan struct{}, 1),
		updates: make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go v.loop(ctx)
	return v
}

// Notify nudges the view to refresh ahead of the next poll tick. Safe to
// call from any goroutine; coalesces while a refresh is in flight.
func (v *ConversationView) Notify() {
	select {
	case v.notify <- struct{}{}:
	default:
	}
}

// Updates signals after each applied refresh. Consumers use it to re-render.
func (v *ConversationView) Updates() <-chan struct{} { return v.updates }

// Close stops the sync loop and waits for it to exit.
func (v *ConversationView) Close() {
	v.cancel()
	<-v.done
}

func (v *ConversationView) loop(ctx context.Context) {
	defer close(v.done)

	v.refresh(ctx)

	ticker := time.NewTicker(v.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.refresh(ctx)
		case <-v.notify:
			v.refresh(ctx)
		}
	}
}

// refresh refetches the full window and replaces the authoritative list.
func (v *ConversationView) refresh(ctx context.Context) {
	msgs, err := v.backend.ListMessages(ctx, v.convID, 0, v.opts.WindowSize)
	if err != nil {
		v.mu.Lock()
		v.lastErr = err
		v.mu.Unlock()
		return
	}

	var maxSeq int64
	for _, m := range msgs {
		if m.Sequence > maxSeq {
			maxSeq = m.Sequence
		}
	}

	v.mu.Lock()
	v.entries = msgs
	v.lastErr = nil
	if v.state == StateLoading {
		v.state = StateSynced
	}
	advanced := maxSeq > v.lastSeq
	if advanced {
		v.lastSeq = maxSeq
	}
	v.mu.Unlock()

	// Viewing a conversation reads it: advance the marker whenever new
	// messages became visible.
	if advanced {
		_ = v.backend.MarkRead(ctx, v.convID, maxSeq)
	}

	select {
	case v.updates <- struct{}{}:
	default:
	}
}

// Send appends an optimistic echo, performs the send, then refetches. On
// failure only the echo is removed; the authoritative list is untouched.
func (v *ConversationView) Send(ctx context.Context, content string) error {
	localID := uuid.New().String()

	v.mu.Lock()
	v.state = StateSending
	v.pending = append(v.pending, Entry{
		Message: Message{
			ConversationID: v.convID,
			Content:        content,
			SentAt:         time.Now(),
		},
		Pending: true,
		LocalID: localID,
	})
	v.mu.Unlock()
	v.signalUpdate()

	_, sendErr := v.backend.SendMessage(ctx, v.convID, content)
	if sendErr == nil {
		// Synchronous refetch so the confirmed message is already in the
		// authoritative list when the echo comes off.
		v.refresh(ctx)
	}

	v.mu.Lock()
	v.removePendingLocked(localID)
	if v.state == StateSending {
		v.state = StateSynced
	}
	v.mu.Unlock()
	v.signalUpdate()

	return sendErr
}

func (v *ConversationView) removePendingLocked(localID string) {
	for i, e := range v.pending {
		if e.LocalID == localID {
			v.pending = append(v.pending[:i], v.pending[i+1:]...)
			return
		}
	}
}

func (v *ConversationView) signalUpdate() {
	select {
	case v.updates <- struct{}{}:
	default:
	}
}

// Snapshot returns the current render state: confirmed messages in sequence
// order followed by pending echoes in submission order.
func (v *ConversationView) Snapshot() ([]Entry, State, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]Entry, 0, len(v.entries)+len(v.pending))
	for _, m := range v.entries {
		out = append(out, Entry{Message: m})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Message.Sequence < out[j].Message.Sequence
	})
	out = append(out, v.pending...)
	return out, v.state, v.lastErr
}

// LastSequence returns the highest sequence the view has observed.
func (v *ConversationView) LastSequence() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeq
}

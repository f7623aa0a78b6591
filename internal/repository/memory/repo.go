// Package memory implements the repository against process memory. It keeps
// the same semantics as the postgres implementation, including duplicate-key
// reporting, so application logic and tests exercise the real code paths
// without a database.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/hordelabs/horde/internal/domain"
	"github.com/hordelabs/horde/internal/repository"
)

type Store struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	dmKeys        map[string]string // dm key -> conversation id
	sequences     map[string]int64  // conversation id -> last assigned sequence
	messages      map[string][]*domain.Message
	readMarkers   map[string]map[string]int64 // conversation id -> user id -> sequence
	outbox        []*repository.OutboxEvent
	processed     map[int64]bool
	nextOutboxID  int64
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*domain.Conversation),
		dmKeys:        make(map[string]string),
		sequences:     make(map[string]int64),
		messages:      make(map[string][]*domain.Message),
		readMarkers:   make(map[string]map[string]int64),
		processed:     make(map[int64]bool),
	}
}

// Transactor serializes logical transactions against the store. There is no
// rollback; callers that fail mid-transaction must not rely on partial state.
type Transactor struct {
	mu sync.Mutex
}

func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx, nil)
}

func (s *Store) InsertConversation(ctx context.Context, _ *sql.Tx, conv *domain.Conversation, dmKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ID]; ok {
		return repository.ErrDuplicate
	}
	if dmKey != "" {
		if _, ok := s.dmKeys[dmKey]; ok {
			return repository.ErrDuplicate
		}
		s.dmKeys[dmKey] = conv.ID
	}

	clone := *conv
	clone.Participants = make(map[string]domain.Participant)
	s.conversations[conv.ID] = &clone
	return nil
}

func (s *Store) InsertParticipant(ctx context.Context, _ *sql.Tx, convID string, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return domain.ErrConversationNotFound
	}
	if _, ok := conv.Participants[p.UserID]; ok {
		return repository.ErrDuplicate
	}
	conv.Participants[p.UserID] = p
	return nil
}

func (s *Store) InitSequence(ctx context.Context, _ *sql.Tx, convID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sequences[convID]; ok {
		return repository.ErrDuplicate
	}
	s.sequences[convID] = 0
	return nil
}

func (s *Store) GetConversation(ctx context.Context, _ *sql.Tx, convID string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return cloneConversation(conv), nil
}

func (s *Store) GetConversationByDMKey(ctx context.Context, _ *sql.Tx, dmKey string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convID, ok := s.dmKeys[dmKey]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return cloneConversation(s.conversations[convID]), nil
}

func (s *Store) ListConversationsByUser(ctx context.Context, userID string) ([]*repository.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summaries []*repository.ConversationSummary
	for _, conv := range s.conversations {
		if _, ok := conv.Participants[userID]; !ok {
			continue
		}
		summary := &repository.ConversationSummary{
			Conversation: cloneConversation(conv),
			UnreadCount:  s.countUnreadLocked(conv.ID, userID),
		}
		if msgs := s.messages[conv.ID]; len(msgs) > 0 {
			last := *msgs[len(msgs)-1]
			summary.LastMessage = &last
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i].Conversation, summaries[j].Conversation
		if !a.LastActivityAt.Equal(b.LastActivityAt) {
			return a.LastActivityAt.After(b.LastActivityAt)
		}
		return a.ID < b.ID
	})
	return summaries, nil
}

func (s *Store) TouchActivity(ctx context.Context, _ *sql.Tx, convID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return domain.ErrConversationNotFound
	}
	if at.After(conv.LastActivityAt) {
		conv.LastActivityAt = at
	}
	return nil
}

func (s *Store) NextSequence(ctx context.Context, _ *sql.Tx, convID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sequences[convID]; !ok {
		return 0, domain.ErrConversationNotFound
	}
	s.sequences[convID]++
	return s.sequences[convID], nil
}

func (s *Store) CurrentMaxSequence(ctx context.Context, _ *sql.Tx, convID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sequences[convID], nil
}

func (s *Store) InsertMessage(ctx context.Context, _ *sql.Tx, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.messages[msg.ConversationID] {
		if existing.ID == msg.ID || existing.Sequence == msg.Sequence {
			return repository.ErrDuplicate
		}
	}
	clone := *msg
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &clone)
	return nil
}

func (s *Store) FetchRecent(ctx context.Context, convID string, limit int) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[convID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return cloneMessages(msgs), nil
}

func (s *Store) FetchBefore(ctx context.Context, convID string, beforeSeq int64, limit int) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var older []*domain.Message
	for _, m := range s.messages[convID] {
		if m.Sequence < beforeSeq {
			older = append(older, m)
		}
	}
	if len(older) > limit {
		older = older[len(older)-limit:]
	}
	return cloneMessages(older), nil
}

func (s *Store) AdvanceReadMarker(ctx context.Context, _ *sql.Tx, convID, userID string, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readMarkers[convID] == nil {
		s.readMarkers[convID] = make(map[string]int64)
	}
	if seq > s.readMarkers[convID][userID] {
		s.readMarkers[convID][userID] = seq
	}
	return nil
}

func (s *Store) CountUnread(ctx context.Context, convID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countUnreadLocked(convID, userID), nil
}

func (s *Store) countUnreadLocked(convID, userID string) int {
	marker := int64(0)
	if markers := s.readMarkers[convID]; markers != nil {
		marker = markers[userID]
	}
	count := 0
	for _, m := range s.messages[convID] {
		if m.Sequence > marker && m.SenderID != userID {
			count++
		}
	}
	return count
}

func (s *Store) UnreadSummary(ctx context.Context, userID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int)
	for id, conv := range s.conversations {
		if _, ok := conv.Participants[userID]; ok {
			out[id] = s.countUnreadLocked(id, userID)
		}
	}
	return out, nil
}

func (s *Store) InsertOutbox(ctx context.Context, _ *sql.Tx, aggregateType, aggregateID, eventType string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOutboxID++
	s.outbox = append(s.outbox, &repository.OutboxEvent{
		ID:            s.nextOutboxID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
	})
	return nil
}

func (s *Store) FetchPendingOutbox(ctx context.Context, limit int) ([]*repository.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*repository.OutboxEvent
	for _, e := range s.outbox {
		if s.processed[e.ID] {
			continue
		}
		events = append(events, e)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

func (s *Store) MarkOutboxProcessed(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		s.processed[id] = true
	}
	return nil
}

func cloneConversation(conv *domain.Conversation) *domain.Conversation {
	clone := *conv
	clone.Participants = make(map[string]domain.Participant, len(conv.Participants))
	for id, p := range conv.Participants {
		clone.Participants[id] = p
	}
	return &clone
}

func cloneMessages(msgs []*domain.Message) []*domain.Message {
	out := make([]*domain.Message, len(msgs))
	for i, m := range msgs {
		clone := *m
		out[i] = &clone
	}
	return out
}

package application

import (
	"context"

	"github.com/hordelabs/horde/internal/domain"
)

type ListMessagesQuery struct {
	ConversationID string
	UserID         string
	// Before, when positive, pages backwards through history: only messages
	// with a smaller sequence are returned. Zero requests the newest window.
	Before int64
	Limit  int
}

// ListMessages returns a window of messages in ascending sequence order.
// Reads are idempotent: repeated calls with the same arguments observe the
// same messages in the same order.
func (s *Service) ListMessages(ctx context.Context, q ListMessagesQuery) ([]*domain.Message, error) {
	limit := clampPageSize(q.Limit)

	conv, err := s.repo.GetConversation(ctx, nil, q.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(q.UserID) {
		return nil, domain.ErrNotParticipant
	}

	if q.Before > 0 {
		return s.repo.FetchBefore(ctx, q.ConversationID, q.Before, limit)
	}
	return s.repo.FetchRecent(ctx, q.ConversationID, limit)
}

// GetConversation resolves a conversation for one of its participants.
func (s *Service) GetConversation(ctx context.Context, convID, userID string) (*domain.Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, nil, convID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}
	return conv, nil
}

package application

import (
	"context"

	"github.com/hordelabs/horde/internal/repository"
)

// ListConversations returns the user's conversations ordered by most recent
// activity, each annotated with its unread count and newest-message preview.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]*repository.ConversationSummary, error) {
	return s.repo.ListConversationsByUser(ctx, userID)
}

package application

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hordelabs/horde/internal/domain"
)

// MarkRead advances the caller's read marker in a conversation. The marker
// only moves forward: an equal or older position is a no-op, which makes the
// call idempotent and safe under concurrent use from multiple devices.
// seq <= 0 means "up to the latest message"; a position past the newest
// message is clamped to it.
func (s *Service) MarkRead(ctx context.Context, convID, userID string, seq int64) error {
	return s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		conv, err := s.repo.GetConversation(ctx, tx, convID)
		if err != nil {
			return err
		}
		if !conv.IsParticipant(userID) {
			return domain.ErrNotParticipant
		}

		maxSeq, err := s.repo.CurrentMaxSequence(ctx, tx, convID)
		if err != nil {
			return fmt.Errorf("current max sequence: %w", err)
		}
		if seq <= 0 || seq > maxSeq {
			seq = maxSeq
		}
		if seq == 0 {
			// Nothing to acknowledge yet.
			return nil
		}

		return s.repo.AdvanceReadMarker(ctx, tx, convID, userID, seq)
	})
}

// UnreadCount reports how many messages authored by others the user has not
// acknowledged in the conversation.
func (s *Service) UnreadCount(ctx context.Context, convID, userID string) (int, error) {
	conv, err := s.repo.GetConversation(ctx, nil, convID)
	if err != nil {
		return 0, err
	}
	if !conv.IsParticipant(userID) {
		return 0, domain.ErrNotParticipant
	}
	return s.repo.CountUnread(ctx, convID, userID)
}

// UnreadSummary maps every conversation of the user to its unread count, for
// badge rendering.
func (s *Service) UnreadSummary(ctx context.Context, userID string) (map[string]int, error) {
	return s.repo.UnreadSummary(ctx, userID)
}

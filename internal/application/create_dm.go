package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hordelabs/horde/internal/domain"
	"github.com/hordelabs/horde/internal/repository"
)

// CreateOrGetDM returns the DM between the caller and partner, creating it if
// none exists. Creation is idempotent per unordered pair: concurrent callers
// racing on the same pair all receive the one conversation that won the
// unique-key insert.
func (s *Service) CreateOrGetDM(ctx context.Context, userID, partnerID string) (*domain.Conversation, error) {
	if userID == partnerID {
		return nil, domain.ErrSelfConversation
	}

	roster, err := s.directory.ListAcceptedMembers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accepted members: %w", err)
	}
	var partner *domain.Participant
	for _, m := range roster {
		if m.UserID == partnerID {
			p := snapshot(m)
			partner = &p
			break
		}
	}
	if partner == nil {
		return nil, domain.ErrInvalidParticipants
	}

	self, err := s.directory.Lookup(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup caller: %w", err)
	}

	key := domain.DMKey(userID, partnerID)

	// Fast path: the pair usually already has its conversation.
	existing, err := s.repo.GetConversationByDMKey(ctx, nil, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrConversationNotFound) {
		return nil, fmt.Errorf("lookup dm by key: %w", err)
	}

	conv, err := domain.NewDirectConversation(uuid.NewString(), snapshot(*self), *partner, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	txErr := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.persistConversation(ctx, tx, conv, key)
	})
	if txErr != nil {
		// A concurrent caller won the insert; the unique dm_key guarantees
		// there is exactly one row to fetch.
		if errors.Is(txErr, repository.ErrDuplicate) {
			existing, err := s.repo.GetConversationByDMKey(ctx, nil, key)
			if err != nil {
				return nil, fmt.Errorf("refetch dm after conflict: %w", err)
			}
			return existing, nil
		}
		return nil, txErr
	}

	s.log.Info("dm conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", userID),
		zap.String("partner_id", partnerID),
	)
	return conv, nil
}

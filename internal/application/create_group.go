package application

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hordelabs/horde/internal/domain"
	"github.com/hordelabs/horde/internal/event"
	"github.com/hordelabs/horde/internal/membership"
)

type CreateGroupCommand struct {
	CreatorID      string
	Name           string
	ParticipantIDs []string
}

// CreateGroup creates a named group conversation from the creator plus the
// given participants. Every participant must be on the creator's accepted
// roster; duplicates and the creator's own id are tolerated and collapsed.
func (s *Service) CreateGroup(ctx context.Context, cmd CreateGroupCommand) (*domain.Conversation, error) {
	name, err := domain.ValidateName(cmd.Name)
	if err != nil {
		return nil, err
	}

	participants, err := s.resolveParticipants(ctx, cmd.CreatorID, cmd.ParticipantIDs)
	if err != nil {
		return nil, err
	}

	conv, err := domain.NewGroupConversation(
		uuid.NewString(),
		cmd.CreatorID,
		name,
		participants,
		time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.persistConversation(ctx, tx, conv, "")
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("group conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("creator_id", cmd.CreatorID),
		zap.Int("participants", len(conv.Participants)),
	)
	return conv, nil
}

// resolveParticipants maps participant ids onto roster snapshots, prepending
// the creator's own snapshot.
func (s *Service) resolveParticipants(ctx context.Context, creatorID string, ids []string) ([]domain.Participant, error) {
	roster, err := s.directory.ListAcceptedMembers(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list accepted members: %w", err)
	}
	byID := make(map[string]membership.Member, len(roster))
	for _, m := range roster {
		byID[m.UserID] = m
	}

	creator, err := s.directory.Lookup(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("lookup creator: %w", err)
	}

	participants := []domain.Participant{snapshot(*creator)}
	seen := map[string]struct{}{creatorID: {}}

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		m, ok := byID[id]
		if !ok {
			return nil, domain.ErrInvalidParticipants
		}
		seen[id] = struct{}{}
		participants = append(participants, snapshot(m))
	}

	if len(participants) < 2 {
		return nil, domain.ErrInvalidParticipants
	}
	return participants, nil
}

// persistConversation writes the conversation, its participant snapshot, its
// sequence row and the creation event as one unit.
func (s *Service) persistConversation(ctx context.Context, tx *sql.Tx, conv *domain.Conversation, dmKey string) error {
	if err := s.repo.InsertConversation(ctx, tx, conv, dmKey); err != nil {
		return err
	}
	if err := s.repo.InitSequence(ctx, tx, conv.ID); err != nil {
		return fmt.Errorf("init sequence: %w", err)
	}
	for _, p := range conv.Participants {
		if err := s.repo.InsertParticipant(ctx, tx, conv.ID, p); err != nil {
			return fmt.Errorf("insert participant %s: %w", p.UserID, err)
		}
	}

	env := event.Envelope{
		Category:       event.CategoryConversationCreated,
		ConversationID: conv.ID,
		SenderID:       conv.CreatorID,
		ParticipantIDs: conv.ParticipantIDs(),
		OccurredAt:     conv.CreatedAt,
	}
	payload, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal creation event: %w", err)
	}
	return s.repo.InsertOutbox(ctx, tx, "conversation", conv.ID, env.Category, payload)
}

func snapshot(m membership.Member) domain.Participant {
	return domain.Participant{
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		ExternalID:  m.ExternalID,
	}
}

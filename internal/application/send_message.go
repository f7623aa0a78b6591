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
	"github.com/hordelabs/horde/internal/observability"
)

type SendMessageCommand struct {
	ConversationID string
	SenderID       string
	Content        string
}

// SendMessage appends a message to a conversation. The insert, the
// conversation's activity bump and the delivery event commit in one
// transaction: from the caller's perspective either all of them happen or
// none do.
func (s *Service) SendMessage(ctx context.Context, cmd SendMessageCommand) (*domain.Message, error) {
	content, err := domain.ValidateContent(cmd.Content)
	if err != nil {
		return nil, err
	}

	var result *domain.Message

	err = s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		conv, err := s.repo.GetConversation(ctx, tx, cmd.ConversationID)
		if err != nil {
			return err
		}
		if !conv.IsParticipant(cmd.SenderID) {
			return domain.ErrNotParticipant
		}

		seq, err := s.repo.NextSequence(ctx, tx, cmd.ConversationID)
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}

		msg, err := domain.NewMessage(
			uuid.NewString(),
			cmd.ConversationID,
			cmd.SenderID,
			seq,
			content,
			time.Now().UTC(),
		)
		if err != nil {
			return err
		}

		if err := s.repo.InsertMessage(ctx, tx, msg); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if err := s.repo.TouchActivity(ctx, tx, cmd.ConversationID, msg.SentAt); err != nil {
			return fmt.Errorf("touch activity: %w", err)
		}

		env := event.Envelope{
			Category:       event.CategoryNewMessage,
			ConversationID: cmd.ConversationID,
			SenderID:       cmd.SenderID,
			ParticipantIDs: conv.ParticipantIDs(),
			OccurredAt:     msg.SentAt,
		}
		payload, err := env.Marshal()
		if err != nil {
			return fmt.Errorf("marshal delivery event: %w", err)
		}
		if err := s.repo.InsertOutbox(ctx, tx, "message", cmd.ConversationID, env.Category, payload); err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}

		result = msg
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.MessagesSentTotal.WithLabelValues("horde").Inc()
	s.log.Debug("message appended",
		zap.String("conversation_id", result.ConversationID),
		zap.String("sender_id", result.SenderID),
		zap.Int64("sequence", result.Sequence),
	)
	return result, nil
}

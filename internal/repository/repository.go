package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hordelabs/horde/internal/domain"
)

// ErrDuplicate reports a uniqueness violation on insert. Callers treat it as
// "the row already exists, fetch it" -- this is how concurrent DM creation
// collapses to a single conversation.
var ErrDuplicate = errors.New("duplicate row")

// ConversationSummary is one entry of a user's conversation list: the
// conversation, a preview of its newest message and that user's unread count.
type ConversationSummary struct {
	Conversation *domain.Conversation
	LastMessage  *domain.Message
	UnreadCount  int
}

// OutboxEvent is a committed delivery event awaiting dispatch.
type OutboxEvent struct {
	ID            int64
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type Repository interface {
	// Conversations. dmKey is empty for group conversations.
	InsertConversation(ctx context.Context, tx *sql.Tx, conv *domain.Conversation, dmKey string) error
	InsertParticipant(ctx context.Context, tx *sql.Tx, convID string, p domain.Participant) error
	InitSequence(ctx context.Context, tx *sql.Tx, convID string) error
	GetConversation(ctx context.Context, tx *sql.Tx, convID string) (*domain.Conversation, error)
	GetConversationByDMKey(ctx context.Context, tx *sql.Tx, dmKey string) (*domain.Conversation, error)
	ListConversationsByUser(ctx context.Context, userID string) ([]*ConversationSummary, error)
	TouchActivity(ctx context.Context, tx *sql.Tx, convID string, at time.Time) error

	// Messages.
	NextSequence(ctx context.Context, tx *sql.Tx, convID string) (int64, error)
	CurrentMaxSequence(ctx context.Context, tx *sql.Tx, convID string) (int64, error)
	InsertMessage(ctx context.Context, tx *sql.Tx, msg *domain.Message) error
	FetchRecent(ctx context.Context, convID string, limit int) ([]*domain.Message, error)
	FetchBefore(ctx context.Context, convID string, beforeSeq int64, limit int) ([]*domain.Message, error)

	// Read markers. Advancement is a monotonic max, never a regression.
	AdvanceReadMarker(ctx context.Context, tx *sql.Tx, convID, userID string, seq int64) error
	CountUnread(ctx context.Context, convID, userID string) (int, error)
	UnreadSummary(ctx context.Context, userID string) (map[string]int, error)

	// Outbox.
	InsertOutbox(ctx context.Context, tx *sql.Tx, aggregateType, aggregateID, eventType string, payload []byte) error
	FetchPendingOutbox(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, ids []int64) error
}

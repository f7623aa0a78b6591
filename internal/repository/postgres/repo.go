package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/hordelabs/horde/internal/domain"
	"github.com/hordelabs/horde/internal/repository"
)

type Repository struct {
	DB *sql.DB
}

type queryable interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *Repository) getter(tx *sql.Tx) queryable {
	if tx != nil {
		return tx
	}
	return r.DB
}

// translate maps unique-constraint violations onto repository.ErrDuplicate so
// callers can resolve creation races by re-fetching the winning row.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return repository.ErrDuplicate
	}
	return err
}

func (r *Repository) InsertConversation(
	ctx context.Context,
	tx *sql.Tx,
	conv *domain.Conversation,
	dmKey string,
) error {
	var key interface{}
	if dmKey != "" {
		key = dmKey
	}

	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO conversations (id, type, name, creator_id, dm_key, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, conv.ID, conv.Type, conv.Name, conv.CreatorID, key, conv.CreatedAt, conv.LastActivityAt)
	return translate(err)
}

func (r *Repository) InsertParticipant(
	ctx context.Context,
	tx *sql.Tx,
	convID string,
	p domain.Participant,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, display_name, external_id)
		VALUES ($1, $2, $3, $4)
	`, convID, p.UserID, p.DisplayName, p.ExternalID)
	return translate(err)
}

func (r *Repository) InitSequence(ctx context.Context, tx *sql.Tx, convID string) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO conversation_sequences (conversation_id, next_sequence)
		VALUES ($1, 0)
	`, convID)
	return translate(err)
}

func (r *Repository) GetConversation(
	ctx context.Context,
	tx *sql.Tx,
	convID string,
) (*domain.Conversation, error) {
	return r.fetchConversation(ctx, tx, `WHERE id = $1`, convID)
}

func (r *Repository) GetConversationByDMKey(
	ctx context.Context,
	tx *sql.Tx,
	dmKey string,
) (*domain.Conversation, error) {
	return r.fetchConversation(ctx, tx, `WHERE dm_key = $1`, dmKey)
}

func (r *Repository) fetchConversation(
	ctx context.Context,
	tx *sql.Tx,
	where string,
	arg interface{},
) (*domain.Conversation, error) {
	q := r.getter(tx)

	var conv domain.Conversation
	var name sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, type, name, creator_id, created_at, last_activity_at
		FROM conversations `+where,
		arg,
	).Scan(&conv.ID, &conv.Type, &name, &conv.CreatorID, &conv.CreatedAt, &conv.LastActivityAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	conv.Name = name.String

	conv.Participants, err = r.fetchParticipants(ctx, q, conv.ID)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *Repository) fetchParticipants(
	ctx context.Context,
	q queryable,
	convID string,
) (map[string]domain.Participant, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, display_name, external_id
		FROM conversation_participants
		WHERE conversation_id = $1
	`, convID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make(map[string]domain.Participant)
	for rows.Next() {
		var p domain.Participant
		var externalID sql.NullString
		if err := rows.Scan(&p.UserID, &p.DisplayName, &externalID); err != nil {
			return nil, err
		}
		p.ExternalID = externalID.String
		participants[p.UserID] = p
	}
	return participants, rows.Err()
}

func (r *Repository) ListConversationsByUser(
	ctx context.Context,
	userID string,
) ([]*repository.ConversationSummary, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT c.id, c.type, c.name, c.creator_id, c.created_at, c.last_activity_at,
		       m.id, m.sender_id, m.sequence, m.content, m.sent_at,
		       (SELECT COUNT(*) FROM messages mm
		         WHERE mm.conversation_id = c.id
		           AND mm.sequence > cp.last_read_sequence
		           AND mm.sender_id <> cp.user_id) AS unread
		FROM conversations c
		JOIN conversation_participants cp
		  ON cp.conversation_id = c.id AND cp.user_id = $1
		LEFT JOIN LATERAL (
			SELECT id, sender_id, sequence, content, sent_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY sequence DESC
			LIMIT 1
		) m ON true
		ORDER BY c.last_activity_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*repository.ConversationSummary
	var convIDs []string

	for rows.Next() {
		var conv domain.Conversation
		var name sql.NullString
		var msgID, msgSender, msgContent sql.NullString
		var msgSeq sql.NullInt64
		var msgSentAt sql.NullTime
		var unread int

		if err := rows.Scan(
			&conv.ID, &conv.Type, &name, &conv.CreatorID, &conv.CreatedAt, &conv.LastActivityAt,
			&msgID, &msgSender, &msgSeq, &msgContent, &msgSentAt,
			&unread,
		); err != nil {
			return nil, err
		}
		conv.Name = name.String

		summary := &repository.ConversationSummary{
			Conversation: &conv,
			UnreadCount:  unread,
		}
		if msgID.Valid {
			summary.LastMessage = &domain.Message{
				ID:             msgID.String,
				ConversationID: conv.ID,
				SenderID:       msgSender.String,
				Sequence:       msgSeq.Int64,
				Content:        msgContent.String,
				SentAt:         msgSentAt.Time,
			}
		}
		summaries = append(summaries, summary)
		convIDs = append(convIDs, conv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, nil
	}

	participants, err := r.fetchParticipantsBulk(ctx, convIDs)
	if err != nil {
		return nil, err
	}
	for _, s := range summaries {
		s.Conversation.Participants = participants[s.Conversation.ID]
	}
	return summaries, nil
}

func (r *Repository) fetchParticipantsBulk(
	ctx context.Context,
	convIDs []string,
) (map[string]map[string]domain.Participant, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT conversation_id, user_id, display_name, external_id
		FROM conversation_participants
		WHERE conversation_id = ANY($1)
	`, pq.Array(convIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]map[string]domain.Participant, len(convIDs))
	for rows.Next() {
		var convID string
		var p domain.Participant
		var externalID sql.NullString
		if err := rows.Scan(&convID, &p.UserID, &p.DisplayName, &externalID); err != nil {
			return nil, err
		}
		p.ExternalID = externalID.String
		if out[convID] == nil {
			out[convID] = make(map[string]domain.Participant)
		}
		out[convID][p.UserID] = p
	}
	return out, rows.Err()
}

func (r *Repository) TouchActivity(
	ctx context.Context,
	tx *sql.Tx,
	convID string,
	at time.Time,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		UPDATE conversations
		SET last_activity_at = GREATEST(last_activity_at, $2)
		WHERE id = $1
	`, convID, at)
	return err
}

func (r *Repository) NextSequence(ctx context.Context, tx *sql.Tx, convID string) (int64, error) {
	var next int64
	q := r.getter(tx)
	err := q.QueryRowContext(ctx, `
		UPDATE conversation_sequences
		SET next_sequence = next_sequence + 1
		WHERE conversation_id = $1
		RETURNING next_sequence
	`, convID).Scan(&next)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrConversationNotFound
		}
		return 0, err
	}
	return next, nil
}

func (r *Repository) CurrentMaxSequence(ctx context.Context, tx *sql.Tx, convID string) (int64, error) {
	var maxSeq sql.NullInt64
	q := r.getter(tx)
	err := q.QueryRowContext(ctx, `
		SELECT next_sequence
		FROM conversation_sequences
		WHERE conversation_id = $1
	`, convID).Scan(&maxSeq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return maxSeq.Int64, nil
}

func (r *Repository) InsertMessage(ctx context.Context, tx *sql.Tx, msg *domain.Message) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, sequence, content, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Sequence, msg.Content, msg.SentAt)
	return translate(err)
}

func (r *Repository) FetchRecent(
	ctx context.Context,
	convID string,
	limit int,
) ([]*domain.Message, error) {
	// Newest window, returned ascending.
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, sequence, content, sent_at
		FROM (
			SELECT id, conversation_id, sender_id, sequence, content, sent_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY sequence DESC
			LIMIT $2
		) w
		ORDER BY sequence ASC
	`, convID, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (r *Repository) FetchBefore(
	ctx context.Context,
	convID string,
	beforeSeq int64,
	limit int,
) ([]*domain.Message, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, sequence, content, sent_at
		FROM (
			SELECT id, conversation_id, sender_id, sequence, content, sent_at
			FROM messages
			WHERE conversation_id = $1
			  AND sequence < $2
			ORDER BY sequence DESC
			LIMIT $3
		) w
		ORDER BY sequence ASC
	`, convID, beforeSeq, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID,
			&msg.Sequence, &msg.Content, &msg.SentAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

func (r *Repository) AdvanceReadMarker(
	ctx context.Context,
	tx *sql.Tx,
	convID string,
	userID string,
	seq int64,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		UPDATE conversation_participants
		SET last_read_sequence = GREATEST(last_read_sequence, $3)
		WHERE conversation_id = $1
		  AND user_id = $2
	`, convID, userID, seq)
	return err
}

func (r *Repository) CountUnread(ctx context.Context, convID, userID string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages m
		JOIN conversation_participants cp
		  ON cp.conversation_id = m.conversation_id AND cp.user_id = $2
		WHERE m.conversation_id = $1
		  AND m.sequence > cp.last_read_sequence
		  AND m.sender_id <> cp.user_id
	`, convID, userID).Scan(&count)
	return count, err
}

func (r *Repository) UnreadSummary(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT cp.conversation_id,
		       (SELECT COUNT(*) FROM messages m
		         WHERE m.conversation_id = cp.conversation_id
		           AND m.sequence > cp.last_read_sequence
		           AND m.sender_id <> cp.user_id)
		FROM conversation_participants cp
		WHERE cp.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var convID string
		var count int
		if err := rows.Scan(&convID, &count); err != nil {
			return nil, err
		}
		out[convID] = count
	}
	return out, rows.Err()
}

func (r *Repository) InsertOutbox(
	ctx context.Context,
	tx *sql.Tx,
	aggregateType, aggregateID, eventType string,
	payload []byte,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`, aggregateType, aggregateID, eventType, payload)
	return err
}

func (r *Repository) FetchPendingOutbox(ctx context.Context, limit int) ([]*repository.OutboxEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*repository.OutboxEvent
	for rows.Next() {
		var e repository.OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *Repository) MarkOutboxProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.DB.ExecContext(ctx, `
		UPDATE outbox_events
		SET processed_at = NOW()
		WHERE id = ANY($1)
	`, pq.Array(ids))
	return err
}

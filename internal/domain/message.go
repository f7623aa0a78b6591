package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const MaxContentLength = 2000

// Message invariants:
// 1. Ordering: Sequence is server-assigned and strictly increasing per conversation.
// 2. Immutability: messages are never edited or deleted by this core.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Sequence       int64
	Content        string
	SentAt         time.Time
}

// ValidateContent trims and validates message content.
func ValidateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", ErrContentTooLong
	}
	return content, nil
}

func NewMessage(id, conversationID, senderID string, sequence int64, content string, now time.Time) (*Message, error) {
	if id == "" || conversationID == "" || senderID == "" {
		return nil, ErrInvalidMessage
	}
	if sequence <= 0 {
		return nil, ErrInvalidSequence
	}

	content, err := ValidateContent(content)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		Sequence:       sequence,
		Content:        content,
		SentAt:         now,
	}, nil
}

package domain

import "errors"

var (
	ErrInvalidName          = errors.New("invalid conversation name")
	ErrInvalidParticipants  = errors.New("invalid participant set")
	ErrSelfConversation     = errors.New("cannot open a conversation with yourself")
	ErrNotParticipant       = errors.New("user not participant")
	ErrEmptyContent         = errors.New("empty message content")
	ErrContentTooLong       = errors.New("message content too long")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrInvalidSequence      = errors.New("invalid sequence")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Package event defines the delivery events that flow from the append path,
// through the transactional outbox, to the delivery hub and its peers.
package event

import (
	"encoding/json"
	"time"
)

// Categories pushed to clients. Events are content-free by design: they only
// prompt a re-fetch, the client never trusts them for message content.
const (
	CategoryNewMessage          = "new-message"
	CategoryConversationCreated = "conversation-created"
)

// Envelope is the internal delivery event persisted in the outbox and relayed
// between instances. Only the Notification part ever reaches a client.
type Envelope struct {
	Category       string    `json:"category"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id,omitempty"`
	ParticipantIDs []string  `json:"participant_ids"`
	Origin         string    `json:"origin,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(b []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Notification is the client-visible payload of one push event.
type Notification struct {
	Category       string `json:"category"`
	ConversationID string `json:"conversation_id"`
}

func (e *Envelope) Notification() Notification {
	return Notification{Category: e.Category, ConversationID: e.ConversationID}
}

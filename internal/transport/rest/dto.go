package rest

import (
	"sort"
	"time"

	"github.com/hordelabs/horde/internal/domain"
	"github.com/hordelabs/horde/internal/repository"
)

type participantDTO struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	ExternalID  string `json:"external_id,omitempty"`
}

type messageDTO struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Sequence       int64     `json:"sequence"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sent_at"`
}

type conversationDTO struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	Name         *string          `json:"name"`
	Participants []participantDTO `json:"participants"`
	LastMessage  *messageDTO      `json:"last_message,omitempty"`
	UnreadCount  int              `json:"unread_count"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func toParticipants(conv *domain.Conversation) []participantDTO {
	out := make([]participantDTO, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		out = append(out, participantDTO{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			ExternalID:  p.ExternalID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func toMessage(conv *domain.Conversation, msg *domain.Message) messageDTO {
	senderName := ""
	if p, ok := conv.Participants[msg.SenderID]; ok {
		senderName = p.DisplayName
	}
	return messageDTO{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderName:     senderName,
		Sequence:       msg.Sequence,
		Content:        msg.Content,
		SentAt:         msg.SentAt,
	}
}

func toConversation(conv *domain.Conversation) conversationDTO {
	dto := conversationDTO{
		ID:           conv.ID,
		Type:         string(conv.Type),
		Participants: toParticipants(conv),
		UpdatedAt:    conv.LastActivityAt,
	}
	if conv.Type == domain.ConversationGroup {
		name := conv.Name
		dto.Name = &name
	}
	return dto
}

func toSummary(s *repository.ConversationSummary) conversationDTO {
	dto := toConversation(s.Conversation)
	dto.UnreadCount = s.UnreadCount
	if s.LastMessage != nil {
		msg := toMessage(s.Conversation, s.LastMessage)
		dto.LastMessage = &msg
	}
	return dto
}

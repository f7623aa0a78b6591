package domain

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

type ConversationType string

const (
	ConversationDM    ConversationType = "dm"
	ConversationGroup ConversationType = "group"
)

const MaxNameLength = 50

// Participant is a denormalized display snapshot taken at creation time.
// The authoritative identity lives in the membership directory.
type Participant struct {
	UserID      string
	DisplayName string
	ExternalID  string
}

// Conversation invariants:
// 1. Membership (DM): exactly 2 participants, at most one DM per unordered pair.
// 2. Membership (group): a non-empty name and >= 2 participants including the creator.
// 3. The participant set is fixed at creation and never mutated.
type Conversation struct {
	ID             string
	Type           ConversationType
	Name           string
	CreatorID      string
	CreatedAt      time.Time
	LastActivityAt time.Time
	Participants   map[string]Participant
}

func (c *Conversation) IsParticipant(userID string) bool {
	_, ok := c.Participants[userID]
	return ok
}

// ParticipantIDs returns the participant set in a stable order.
func (c *Conversation) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for id := range c.Participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Other returns the DM partner of the given user.
func (c *Conversation) Other(userID string) (Participant, bool) {
	if c.Type != ConversationDM {
		return Participant{}, false
	}
	for id, p := range c.Participants {
		if id != userID {
			return p, true
		}
	}
	return Participant{}, false
}

// ValidateName trims and validates a group conversation name.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

// NewGroupConversation builds a group conversation from the creator plus a
// participant snapshot. The snapshot must already contain the creator; it is
// deduplicated by user id.
func NewGroupConversation(id, creatorID, name string, participants []Participant, now time.Time) (*Conversation, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	set := make(map[string]Participant, len(participants))
	for _, p := range participants {
		if p.UserID == "" {
			return nil, ErrInvalidParticipants
		}
		set[p.UserID] = p
	}
	if _, ok := set[creatorID]; !ok || len(set) < 2 {
		return nil, ErrInvalidParticipants
	}

	return &Conversation{
		ID:             id,
		Type:           ConversationGroup,
		Name:           name,
		CreatorID:      creatorID,
		CreatedAt:      now,
		LastActivityAt: now,
		Participants:   set,
	}, nil
}

// NewDirectConversation builds a DM between two distinct users.
func NewDirectConversation(id string, a, b Participant, now time.Time) (*Conversation, error) {
	if a.UserID == "" || b.UserID == "" {
		return nil, ErrInvalidParticipants
	}
	if a.UserID == b.UserID {
		return nil, ErrSelfConversation
	}

	return &Conversation{
		ID:             id,
		Type:           ConversationDM,
		CreatorID:      a.UserID,
		CreatedAt:      now,
		LastActivityAt: now,
		Participants: map[string]Participant{
			a.UserID: a,
			b.UserID: b,
		},
	}, nil
}

// DMKey normalizes an unordered user pair into the unique lookup key that
// enforces the single-DM-per-pair invariant.
func DMKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "dm:" + a + ":" + b
}

// Package membership exposes the external membership directory: the fixed
// roster of mutually accepted members a user may converse with. The messaging
// core only ever reads from it.
package membership

import (
	"context"
	"errors"
)

var ErrMemberNotFound = errors.New("member not found")

type Member struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	ExternalID  string `json:"external_id,omitempty"`
}

type Directory interface {
	// ListAcceptedMembers returns the roster of members the owner may add to
	// a conversation. The owner itself is not part of the roster.
	ListAcceptedMembers(ctx context.Context, ownerID string) ([]Member, error)

	// Lookup resolves a single member's display snapshot.
	Lookup(ctx context.Context, userID string) (*Member, error)
}

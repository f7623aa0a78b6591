package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hordelabs/horde/internal/membership"
	"github.com/hordelabs/horde/internal/repository/memory"
)

type fixture struct {
	svc   *Service
	store *memory.Store
	dir   *membership.Static
}

// newFixture wires a service over the in-memory store with users alice, bob
// and carol all mutually accepted.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := membership.NewStatic()
	for _, u := range []struct{ id, name string }{
		{"alice", "Alice"},
		{"bob", "Bob"},
		{"carol", "Carol"},
		{"dave", "Dave"},
	} {
		dir.AddMember(membership.Member{UserID: u.id, DisplayName: u.name})
	}
	dir.Accept("alice", "bob")
	dir.Accept("alice", "carol")
	dir.Accept("bob", "carol")

	store := memory.NewStore()
	svc := New(store, &memory.Transactor{}, dir, nil)
	return &fixture{svc: svc, store: store, dir: dir}
}

func (f *fixture) group(t *testing.T, creator string, others ...string) string {
	t.Helper()
	conv, err := f.svc.CreateGroup(context.Background(), CreateGroupCommand{
		CreatorID:      creator,
		Name:           "test group",
		ParticipantIDs: others,
	})
	require.NoError(t, err)
	return conv.ID
}

func (f *fixture) send(t *testing.T, convID, sender, content string) int64 {
	t.Helper()
	msg, err := f.svc.SendMessage(context.Background(), SendMessageCommand{
		ConversationID: convID,
		SenderID:       sender,
		Content:        content,
	})
	require.NoError(t, err)
	return msg.Sequence
}

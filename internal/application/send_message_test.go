package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hordelabs/horde/internal/domain"
)

func TestSendMessageAssignsSequences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	convID := f.group(t, "alice", "bob")

	for want := int64(1); want <= 3; want++ {
		msg, err := f.svc.SendMessage(ctx, SendMessageCommand{
			ConversationID: convID,
			SenderID:       "alice",
			Content:        fmt.Sprintf("message %d", want),
		})
		require.NoError(t, err)
		assert.Equal(t, want, msg.Sequence)
		assert.Equal(t, convID, msg.ConversationID)
		assert.NotEmpty(t, msg.ID)
	}
}

func TestSendMessageTrimsContent(t *testing.T) {
	f := newFixture(t)
	convID := f.group(t, "alice", "bob")

	msg, err := f.svc.SendMessage(context.Background(), SendMessageCommand{
		ConversationID: convID,
		SenderID:       "bob",
		Content:        "  hello  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	convID := f.group(t, "alice", "bob")

	_, err := f.svc.SendMessage(ctx, SendMessageCommand{ConversationID: convID, SenderID: "alice", Content: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	_, err = f.svc.SendMessage(ctx, SendMessageCommand{
		ConversationID: convID,
		SenderID:       "alice",
		Content:        strings.Repeat("x", domain.MaxContentLength+1),
	})
	assert.ErrorIs(t, err, domain.ErrContentTooLong)

	// Exactly at the limit is fine.
	_, err = f.svc.SendMessage(ctx, SendMessageCommand{
		ConversationID: convID,
		SenderID:       "alice",
		Content:        strings.Repeat("x", domain.MaxContentLength),
	})
	assert.NoError(t, err)
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	f := newFixture(t)
	convID := f.group(t, "alice", "bob")

	_, err := f.svc.SendMessage(context.Background(), SendMessageCommand{
		ConversationID: convID,
		SenderID:       "carol",
		Content:        "let me in",
	})
	assert.ErrorIs(t, err, domain.ErrNotParticipant)
}

func TestSendMessageUnknownConversation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SendMessage(context.Background(), SendMessageCommand{
		ConversationID: "no-such-conversation",
		SenderID:       "alice",
		Content:        "hello",
	})
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

// Concurrent senders must receive distinct, gap-free sequences, and repeated
// reads of the window must agree.
func TestSendMessageConcurrentOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	convID := f.group(t, "alice", "bob", "carol")

	const perSender = 10
	senders := []string{"alice", "bob", "carol"}

	var wg sync.WaitGroup
	for _, sender := range senders {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := f.svc.SendMessage(ctx, SendMessageCommand{
					ConversationID: convID,
					SenderID:       sender,
					Content:        fmt.Sprintf("%s-%d", sender, i),
				})
				assert.NoError(t, err)
			}
		}(sender)
	}
	wg.Wait()

	total := perSender * len(senders)
	msgs, err := f.svc.ListMessages(ctx, ListMessagesQuery{
		ConversationID: convID,
		UserID:         "alice",
		Limit:          total,
	})
	require.NoError(t, err)
	require.Len(t, msgs, total)

	seen := make(map[int64]bool, total)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Sequence, "sequences must be dense and ascending")
		assert.False(t, seen[m.Sequence])
		seen[m.Sequence] = true
	}

	// A second read returns the same order.
	again, err := f.svc.ListMessages(ctx, ListMessagesQuery{
		ConversationID: convID,
		UserID:         "bob",
		Limit:          total,
	})
	require.NoError(t, err)
	for i := range msgs {
		assert.Equal(t, msgs[i].ID, again[i].ID)
	}
}

func TestListMessagesPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	convID := f.group(t, "alice", "bob")

	for i := 0; i < 10; i++ {
		f.send(t, convID, "alice", fmt.Sprintf("m%d", i))
	}

	newest, err := f.svc.ListMessages(ctx, ListMessagesQuery{ConversationID: convID, UserID: "bob", Limit: 4})
	require.NoError(t, err)
	require.Len(t, newest, 4)
	assert.Equal(t, int64(7), newest[0].Sequence)
	assert.Equal(t, int64(10), newest[3].Sequence)

	older, err := f.svc.ListMessages(ctx, ListMessagesQuery{
		ConversationID: convID,
		UserID:         "bob",
		Before:         newest[0].Sequence,
		Limit:          4,
	})
	require.NoError(t, err)
	require.Len(t, older, 4)
	assert.Equal(t, int64(3), older[0].Sequence)
	assert.Equal(t, int64(6), older[3].Sequence)
}

func TestListMessagesRejectsNonParticipant(t *testing.T) {
	f := newFixture(t)
	convID := f.group(t, "alice", "bob")

	_, err := f.svc.ListMessages(context.Background(), ListMessagesQuery{
		ConversationID: convID,
		UserID:         "carol",
	})
	assert.ErrorIs(t, err, domain.ErrNotParticipant)
}

func TestListConversationsOrderedByActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.group(t, "alice", "bob")
	second := f.group(t, "alice", "carol")

	// Activity in the first conversation moves it back to the top.
	f.send(t, second, "alice", "hi carol")
	f.send(t, first, "bob", "hi alice")

	summaries, err := f.svc.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, first, summaries[0].Conversation.ID)
	assert.Equal(t, second, summaries[1].Conversation.ID)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "hi alice", summaries[0].LastMessage.Content)
}

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hordelabs/horde/internal/application"
	"github.com/hordelabs/horde/internal/membership"
	"github.com/hordelabs/horde/internal/middleware"
	"github.com/hordelabs/horde/internal/repository/memory"
)

// testServer mounts the API routes behind a stub auth middleware that trusts
// the X-Test-User header.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := membership.NewStatic()
	for _, u := range []struct{ id, name string }{
		{"alice", "Alice"},
		{"bob", "Bob"},
		{"carol", "Carol"},
	} {
		dir.AddMember(membership.Member{UserID: u.id, DisplayName: u.name})
	}
	dir.Accept("alice", "bob")
	dir.Accept("alice", "carol")
	dir.Accept("bob", "carol")

	app := application.New(memory.NewStore(), &memory.Transactor{}, dir, nil)
	convH := NewConversationHandler(app)
	msgH := NewMessageHandler(app)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.InjectUserID(req.Context(), req.Header.Get("X-Test-User"))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/conversations", convH.Create)
		r.Get("/conversations", convH.List)
		r.Get("/conversations/{id}/messages", msgH.List)
		r.Post("/conversations/{id}/messages", msgH.Send)
		r.Post("/conversations/{id}/read", msgH.MarkRead)
		r.Get("/unread", msgH.Unread)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, user, method, path string, body interface{}, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("X-Test-User", user)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type convResp struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Name         *string `json:"name"`
	UnreadCount  int     `json:"unread_count"`
	Participants []struct {
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
	} `json:"participants"`
	LastMessage *struct {
		Content  string `json:"content"`
		Sequence int64  `json:"sequence"`
	} `json:"last_message"`
}

func createGroup(t *testing.T, srv *httptest.Server, creator string, others ...string) string {
	t.Helper()
	var conv convResp
	status := doJSON(t, srv, creator, http.MethodPost, "/api/conversations", map[string]interface{}{
		"type":            "group",
		"name":            "test group",
		"participant_ids": others,
	}, &conv)
	require.Equal(t, http.StatusCreated, status)
	return conv.ID
}

func TestCreateGroupEndpoint(t *testing.T) {
	srv := testServer(t)

	var conv convResp
	status := doJSON(t, srv, "alice", http.MethodPost, "/api/conversations", map[string]interface{}{
		"type":            "group",
		"name":            "lunch crew",
		"participant_ids": []string{"bob", "carol"},
	}, &conv)

	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "group", conv.Type)
	require.NotNil(t, conv.Name)
	assert.Equal(t, "lunch crew", *conv.Name)
	assert.Len(t, conv.Participants, 3)
}

func TestCreateDMEndpointIdempotent(t *testing.T) {
	srv := testServer(t)

	var first convResp
	status := doJSON(t, srv, "alice", http.MethodPost, "/api/conversations", map[string]interface{}{
		"type":            "dm",
		"participant_ids": []string{"bob"},
	}, &first)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "dm", first.Type)
	assert.Nil(t, first.Name)

	var second convResp
	status = doJSON(t, srv, "bob", http.MethodPost, "/api/conversations", map[string]interface{}{
		"type":            "dm",
		"participant_ids": []string{"alice"},
	}, &second)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateConversationBadRequests(t *testing.T) {
	srv := testServer(t)

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"unknown type", map[string]interface{}{"type": "broadcast"}},
		{"dm with two participants", map[string]interface{}{"type": "dm", "participant_ids": []string{"bob", "carol"}}},
		{"group without name", map[string]interface{}{"type": "group", "participant_ids": []string{"bob"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status := doJSON(t, srv, "alice", http.MethodPost, "/api/conversations", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}
}

func TestSendAndListMessages(t *testing.T) {
	srv := testServer(t)
	convID := createGroup(t, srv, "alice", "bob")

	for i := 0; i < 3; i++ {
		status := doJSON(t, srv, "alice", http.MethodPost,
			fmt.Sprintf("/api/conversations/%s/messages", convID),
			map[string]string{"content": fmt.Sprintf("hello %d", i)}, nil)
		require.Equal(t, http.StatusCreated, status)
	}

	var resp struct {
		Messages []struct {
			SenderID   string `json:"sender_id"`
			SenderName string `json:"sender_name"`
			Sequence   int64  `json:"sequence"`
			Content    string `json:"content"`
		} `json:"messages"`
	}
	status := doJSON(t, srv, "bob", http.MethodGet,
		fmt.Sprintf("/api/conversations/%s/messages", convID), nil, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Messages, 3)
	for i, m := range resp.Messages {
		assert.Equal(t, int64(i+1), m.Sequence)
		assert.Equal(t, "alice", m.SenderID)
		assert.Equal(t, "Alice", m.SenderName)
	}
}

func TestMessagePagingEndpoint(t *testing.T) {
	srv := testServer(t)
	convID := createGroup(t, srv, "alice", "bob")

	for i := 0; i < 6; i++ {
		doJSON(t, srv, "alice", http.MethodPost,
			fmt.Sprintf("/api/conversations/%s/messages", convID),
			map[string]string{"content": fmt.Sprintf("m%d", i)}, nil)
	}

	var resp struct {
		Messages []struct {
			Sequence int64 `json:"sequence"`
		} `json:"messages"`
	}
	status := doJSON(t, srv, "bob", http.MethodGet,
		fmt.Sprintf("/api/conversations/%s/messages?before=4&limit=2", convID), nil, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, int64(2), resp.Messages[0].Sequence)
	assert.Equal(t, int64(3), resp.Messages[1].Sequence)
}

func TestMessageEndpointErrors(t *testing.T) {
	srv := testServer(t)
	convID := createGroup(t, srv, "alice", "bob")

	// carol is not a participant.
	status := doJSON(t, srv, "carol", http.MethodPost,
		fmt.Sprintf("/api/conversations/%s/messages", convID),
		map[string]string{"content": "hi"}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status = doJSON(t, srv, "alice", http.MethodPost,
		"/api/conversations/does-not-exist/messages",
		map[string]string{"content": "hi"}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = doJSON(t, srv, "alice", http.MethodPost,
		fmt.Sprintf("/api/conversations/%s/messages", convID),
		map[string]string{"content": "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMarkReadAndUnreadEndpoints(t *testing.T) {
	srv := testServer(t)
	convID := createGroup(t, srv, "alice", "bob")

	for i := 0; i < 3; i++ {
		doJSON(t, srv, "alice", http.MethodPost,
			fmt.Sprintf("/api/conversations/%s/messages", convID),
			map[string]string{"content": fmt.Sprintf("m%d", i)}, nil)
	}

	var unread struct {
		Counts map[string]int `json:"counts"`
	}
	status := doJSON(t, srv, "bob", http.MethodGet, "/api/unread", nil, &unread)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, unread.Counts[convID])

	status = doJSON(t, srv, "bob", http.MethodPost,
		fmt.Sprintf("/api/conversations/%s/read", convID),
		map[string]int64{"sequence": 3}, nil)
	require.Equal(t, http.StatusNoContent, status)

	status = doJSON(t, srv, "bob", http.MethodGet, "/api/unread", nil, &unread)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, unread.Counts[convID])
}

func TestListConversationsEndpoint(t *testing.T) {
	srv := testServer(t)
	convID := createGroup(t, srv, "alice", "bob")

	doJSON(t, srv, "alice", http.MethodPost,
		fmt.Sprintf("/api/conversations/%s/messages", convID),
		map[string]string{"content": "latest"}, nil)

	var resp struct {
		Conversations []convResp `json:"conversations"`
	}
	status := doJSON(t, srv, "bob", http.MethodGet, "/api/conversations", nil, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Conversations, 1)

	conv := resp.Conversations[0]
	assert.Equal(t, convID, conv.ID)
	assert.Equal(t, 1, conv.UnreadCount)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "latest", conv.LastMessage.Content)
}

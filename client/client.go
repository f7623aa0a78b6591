// Package client implements the consuming side of the messaging core: an
// HTTP backend for the REST surface and a sync engine that merges optimistic
// local echo, push notifications and periodic polling into one consistent
// view per conversation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Participant struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	ExternalID  string `json:"external_id,omitempty"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Sequence       int64     `json:"sequence"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sent_at"`
}

type Conversation struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Name         *string       `json:"name"`
	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"last_message,omitempty"`
	UnreadCount  int           `json:"unread_count"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Notification is one content-free push event.
type Notification struct {
	Category       string `json:"category"`
	ConversationID string `json:"conversation_id"`
}

// Backend abstracts the server. The sync engine only needs these operations;
// tests substitute an in-process fake.
type Backend interface {
	ListConversations(ctx context.Context) ([]Conversation, error)
	CreateGroup(ctx context.Context, name string, participantIDs []string) (*Conversation, error)
	CreateDM(ctx context.Context, partnerID string) (*Conversation, error)
	ListMessages(ctx context.Context, convID string, before int64, limit int) ([]Message, error)
	SendMessage(ctx context.Context, convID, content string) (*Message, error)
	MarkRead(ctx context.Context, convID string, seq int64) error
	UnreadSummary(ctx context.Context) (map[string]int, error)

	// Subscribe opens the push stream. The returned channel closes when ctx
	// is done. Events may be dropped at any point; consumers must poll.
	Subscribe(ctx context.Context) (<-chan Notification, error)
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string  `json:"error"`
	Message string  `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Retryable reports whether the request may succeed on retry.
func (e *APIError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// HTTPBackend talks to the REST surface. HTTPClient serves the request/
// response calls; StreamClient serves the push subscription and must not
// carry a whole-response timeout, since http.Client.Timeout covers the body
// read and would cut the stream off mid-subscription.
type HTTPBackend struct {
	BaseURL      string
	Token        string
	HTTPClient   *http.Client
	StreamClient *http.Client
}

func NewHTTPBackend(baseURL, token string) *HTTPBackend {
	return &HTTPBackend{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		StreamClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 10 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
			},
		},
	}
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return err
		}
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+b.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (b *HTTPBackend) ListConversations(ctx context.Context) ([]Conversation, error) {
	var resp struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := b.do(ctx, http.MethodGet, "/api/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

func (b *HTTPBackend) CreateGroup(ctx context.Context, name string, participantIDs []string) (*Conversation, error) {
	req := map[string]interface{}{
		"type":            "group",
		"name":            name,
		"participant_ids": participantIDs,
	}
	var conv Conversation
	if err := b.do(ctx, http.MethodPost, "/api/conversations", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (b *HTTPBackend) CreateDM(ctx context.Context, partnerID string) (*Conversation, error) {
	req := map[string]interface{}{
		"type":            "dm",
		"participant_ids": []string{partnerID},
	}
	var conv Conversation
	if err := b.do(ctx, http.MethodPost, "/api/conversations", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (b *HTTPBackend) ListMessages(ctx context.Context, convID string, before int64, limit int) ([]Message, error) {
	path := fmt.Sprintf("/api/conversations/%s/messages", convID)
	sep := "?"
	if before > 0 {
		path += fmt.Sprintf("%sbefore=%d", sep, before)
		sep = "&"
	}
	if limit > 0 {
		path += fmt.Sprintf("%slimit=%d", sep, limit)
	}

	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := b.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (b *HTTPBackend) SendMessage(ctx context.Context, convID, content string) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/api/conversations/%s/messages", convID)
	if err := b.do(ctx, http.MethodPost, path, map[string]string{"content": content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (b *HTTPBackend) MarkRead(ctx context.Context, convID string, seq int64) error {
	path := fmt.Sprintf("/api/conversations/%s/read", convID)
	return b.do(ctx, http.MethodPost, path, map[string]int64{"sequence": seq}, nil)
}

func (b *HTTPBackend) UnreadSummary(ctx context.Context) (map[string]int, error) {
	var resp struct {
		Counts map[string]int `json:"counts"`
	}
	if err := b.do(ctx, http.MethodGet, "/api/unread", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Counts, nil
}

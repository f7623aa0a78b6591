package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hordelabs/horde/internal/application"
	"github.com/hordelabs/horde/internal/middleware"
	"github.com/hordelabs/horde/internal/transport"
)

type MessageHandler struct {
	app *application.Service
}

func NewMessageHandler(app *application.Service) *MessageHandler {
	return &MessageHandler{app: app}
}

// List GET /api/conversations/{id}/messages?before=<seq>&limit=<n>
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	convID := chi.URLParam(r, "id")

	before, _ := strconv.ParseInt(r.URL.Query().Get("before"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	conv, err := h.app.GetConversation(r.Context(), convID, userID)
	if err != nil {
		transport.Error(w, r, err)
		return
	}

	msgs, err := h.app.ListMessages(r.Context(), application.ListMessagesQuery{
		ConversationID: convID,
		UserID:         userID,
		Before:         before,
		Limit:          limit,
	})
	if err != nil {
		transport.Error(w, r, err)
		return
	}

	out := make([]messageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(conv, m))
	}
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": out})
}

// Send POST /api/conversations/{id}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	convID := chi.URLParam(r, "id")

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, errInvalidBody, msgInvalidJSON)
		return
	}

	msg, err := h.app.SendMessage(r.Context(), application.SendMessageCommand{
		ConversationID: convID,
		SenderID:       userID,
		Content:        req.Content,
	})
	if err != nil {
		transport.Error(w, r, err)
		return
	}

	conv, err := h.app.GetConversation(r.Context(), convID, userID)
	if err != nil {
		transport.Error(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, toMessage(conv, msg))
}

// MarkRead POST /api/conversations/{id}/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	convID := chi.URLParam(r, "id")

	// The body is optional; without a sequence the marker advances to the
	// newest message.
	var req struct {
		Sequence int64 `json:"sequence"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.app.MarkRead(r.Context(), convID, userID, req.Sequence); err != nil {
		transport.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unread GET /api/unread
func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	counts, err := h.app.UnreadSummary(r.Context(), userID)
	if err != nil {
		transport.Error(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"counts": counts})
}

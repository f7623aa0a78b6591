package rest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hordelabs/horde/internal/application"
	"github.com/hordelabs/horde/internal/domain"
	"github.com/hordelabs/horde/internal/middleware"
	"github.com/hordelabs/horde/internal/transport"
)

const (
	errInvalidBody = "invalid_body"
	errInvalidType = "invalid_type"
	msgInvalidJSON = "invalid json"
)

type ConversationHandler struct {
	app *application.Service
}

func NewConversationHandler(app *application.Service) *ConversationHandler {
	return &ConversationHandler{app: app}
}

// Create POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req struct {
		Type           string   `json:"type"`
		Name           string   `json:"name"`
		ParticipantIDs []string `json:"participant_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, errInvalidBody, msgInvalidJSON)
		return
	}

	switch strings.ToLower(req.Type) {
	case string(domain.ConversationGroup):
		conv, err := h.app.CreateGroup(r.Context(), application.CreateGroupCommand{
			CreatorID:      userID,
			Name:           req.Name,
			ParticipantIDs: req.ParticipantIDs,
		})
		if err != nil {
			transport.Error(w, r, err)
			return
		}
		transport.WriteJSON(w, http.StatusCreated, toConversation(conv))

	case string(domain.ConversationDM):
		if len(req.ParticipantIDs) != 1 {
			transport.WriteError(w, http.StatusBadRequest, errInvalidBody, "a dm takes exactly one participant id")
			return
		}
		conv, err := h.app.CreateOrGetDM(r.Context(), userID, req.ParticipantIDs[0])
		if err != nil {
			transport.Error(w, r, err)
			return
		}
		transport.WriteJSON(w, http.StatusOK, toConversation(conv))

	default:
		transport.WriteError(w, http.StatusBadRequest, errInvalidType, "type must be group or dm")
	}
}

// List GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	summaries, err := h.app.ListConversations(r.Context(), userID)
	if err != nil {
		transport.Error(w, r, err)
		return
	}

	out := make([]conversationDTO, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toSummary(s))
	}
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"conversations": out})
}

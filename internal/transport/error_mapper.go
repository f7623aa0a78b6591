package transport

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hordelabs/horde/internal/domain"
	"github.com/hordelabs/horde/internal/observability"
)

// Error maps domain errors to HTTP status and error codes. Validation and
// authorization failures are terminal and carry their own message; anything
// unrecognized is logged and reported as an internal error.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidParticipants),
		errors.Is(err, domain.ErrSelfConversation),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrContentTooLong),
		errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrInvalidSequence):
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())

	case errors.Is(err, domain.ErrNotParticipant):
		WriteError(w, http.StatusForbidden, "not_participant", "requester is not a participant of this conversation")

	case errors.Is(err, domain.ErrConversationNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error())

	default:
		observability.GetLogger(r.Context()).Error("internal_error", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}

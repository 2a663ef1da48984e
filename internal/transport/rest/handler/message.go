package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"chatzone/internal/service"
	"chatzone/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// MessageHandler receives message events from the chat API
type MessageHandler struct {
	messages *service.MessageService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Sent handles POST /v1/messages/{messageId}/sent
func (h *MessageHandler) Sent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	res, err := h.messages.Announce(r.Context(), userID, mux.Vars(r)["messageId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// Seen handles PUT /v1/messages/{messageId}/seen
func (h *MessageHandler) Seen(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	messageID := mux.Vars(r)["messageId"]
	change, err := h.messages.MarkSeen(r.Context(), userID, messageID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if change == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"messageId": messageID, "changed": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messageId": messageID, "changed": true, "status": change})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMessageNotFound), errors.Is(err, service.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotSender):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

package handler

import (
	"net/http"

	"chatzone/internal/service"

	"github.com/gorilla/mux"
)

// RoomHandler exposes live room membership
type RoomHandler struct {
	broker *service.Broker
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(broker *service.Broker) *RoomHandler {
	return &RoomHandler{broker: broker}
}

// Sessions handles GET /v1/rooms/{roomId}/sessions
func (h *RoomHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roomId":   roomID,
		"sessions": len(h.broker.Members(roomID)),
	})
}

package handler

import (
	"net/http"
	"strings"

	"chatzone/internal/model"
	"chatzone/internal/service"

	"github.com/gorilla/mux"
)

const maxPresenceIDs = 100

// PresenceHandler serves the read side of presence
type PresenceHandler struct {
	presence *service.PresencePublisher
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(presence *service.PresencePublisher) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// Get handles GET /v1/presence/{userId}
func (h *PresenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	info, err := h.presence.Info(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load presence")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// List handles GET /v1/presence?ids=a,b,c
func (h *PresenceHandler) List(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}
	if len(ids) > maxPresenceIDs {
		writeError(w, http.StatusBadRequest, "too many ids")
		return
	}

	out := make([]model.PresenceInfo, 0, len(ids))
	for _, id := range ids {
		info, err := h.presence.Info(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load presence")
			return
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": out})
}

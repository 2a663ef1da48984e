package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"chatzone/internal/config"
	"chatzone/internal/model"
	"chatzone/internal/service"
	"chatzone/internal/transport/rest/middleware"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	dispatchTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the CORS config in front
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub     *Hub
	rt      *service.Realtime
	authSvc middleware.TokenValidator
	cfg     config.WSConfig
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, rt *service.Realtime, authSvc middleware.TokenValidator, cfg config.WSConfig) *Handler {
	return &Handler{
		hub:     hub,
		rt:      rt,
		authSvc: authSvc,
		cfg:     cfg,
	}
}

// Serve handles GET /v1/ws. The token comes from ?token= or the
// Authorization header.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := newConnection(claims.UserID, h.cfg.SendBuffer)
	if !h.hub.add(conn) {
		wsConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		wsConn.Close()
		return
	}
	session := h.rt.Connect(claims.UserID, conn)
	conn.SessionID = session.ID

	slog.Info("websocket connected", "session_id", session.ID, "user_id", claims.UserID, "remote", r.RemoteAddr)

	go h.writePump(wsConn, conn)
	h.readPump(r.Context(), wsConn, conn)
}

func (h *Handler) readPump(ctx context.Context, wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.rt.Disconnect(conn.SessionID)
		conn.Close()
		h.hub.remove(conn)
		wsConn.Close()
		slog.Info("websocket disconnected", "session_id", conn.SessionID, "user_id", conn.UserID)
	}()

	if h.cfg.MaxMessageBytes > 0 {
		wsConn.SetReadLimit(h.cfg.MaxMessageBytes)
	}
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	limiter := rate.NewLimiter(rate.Limit(h.cfg.EventsPerSecond), h.cfg.EventBurst)
	if h.cfg.EventsPerSecond <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "session_id", conn.SessionID, "error", err)
			}
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			h.reject(conn, "", "malformed frame")
			continue
		}
		if !limiter.Allow() {
			h.reject(conn, env.Type, "rate limited")
			continue
		}

		h.dispatch(ctx, conn, env)
	}
}

func (h *Handler) dispatch(ctx context.Context, conn *Connection, env model.Envelope) {
	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	err := h.rt.Dispatch(ctx, conn.SessionID, env)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidEvent), errors.Is(err, service.ErrPeerUnreachable),
		errors.Is(err, service.ErrPeerBusy):
		slog.Debug("event not relayed", "session_id", conn.SessionID, "event", env.Type, "error", err)
	default:
		slog.Warn("event failed", "session_id", conn.SessionID, "event", env.Type, "error", err)
	}
}

func (h *Handler) reject(conn *Connection, event model.EventType, reason string) {
	frame, err := model.EncodeFrame(model.EvtError, model.ErrorEvent{Event: event, Reason: reason})
	if err != nil {
		return
	}
	_ = conn.Send(frame)
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

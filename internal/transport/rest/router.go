package rest

import (
	"net/http"

	"chatzone/internal/config"
	"chatzone/internal/service"
	"chatzone/internal/transport/rest/handler"
	"chatzone/internal/transport/rest/middleware"
	"chatzone/internal/transport/ws"

	"github.com/gorilla/mux"
)

// Container holds all dependencies for the router
type Container struct {
	Config      *config.Config
	AuthService *service.AuthService
	Realtime    *service.Realtime
	WSHub       *ws.Hub
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	presenceHandler := handler.NewPresenceHandler(c.Realtime.Presence)
	roomHandler := handler.NewRoomHandler(c.Realtime.Broker)
	messageHandler := handler.NewMessageHandler(c.Realtime.Messages)
	wsHandler := ws.NewHandler(c.WSHub, c.Realtime, c.AuthService, c.Config.WS)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.Config))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// WebSocket route (token in query param or header)
	v1.HandleFunc("/ws", wsHandler.Serve).Methods("GET")

	// User routes (require user auth)
	userRoutes := v1.NewRoute().Subrouter()
	userRoutes.Use(authMW.RequireUser)

	userRoutes.HandleFunc("/presence", presenceHandler.List).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/presence/{userId}", presenceHandler.Get).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/rooms/{roomId}/sessions", roomHandler.Sessions).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/messages/{messageId}/sent", messageHandler.Sent).Methods("POST", "OPTIONS")
	userRoutes.HandleFunc("/messages/{messageId}/seen", messageHandler.Seen).Methods("PUT", "OPTIONS")

	return r
}

func corsMiddleware(cfg *config.Config) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", cfg.CORSAllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", cfg.CORSAllowedHeaders)

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

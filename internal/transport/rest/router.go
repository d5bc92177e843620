package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"musicjam/internal/fanout"
	"musicjam/internal/service"
	"musicjam/internal/transport/rest/handler"
	"musicjam/internal/transport/rest/middleware"
	"musicjam/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService     *service.AuthService
	JamService      *service.JamService
	PresenceService *service.PresenceService
	TrackService    *service.TrackService
	WSHub           *ws.Hub
	FanoutManager   *fanout.Manager
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	jamHandler := handler.NewJamHandler(c.JamService, c.PresenceService, c.TrackService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.JamService, c.FanoutManager)

	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// WebSocket route (token in query param)
	v1.HandleFunc("/ws/jams/{code}", wsHandler.ViewerWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Member routes (require a valid identity token)
	memberRoutes := v1.NewRoute().Subrouter()
	memberRoutes.Use(authMW.RequireMember)

	memberRoutes.HandleFunc("/jams", jamHandler.Create).Methods("POST", "OPTIONS")
	memberRoutes.HandleFunc("/jams/{code}", jamHandler.End).Methods("DELETE", "OPTIONS")
	memberRoutes.HandleFunc("/jams/{code}/join", jamHandler.Join).Methods("POST", "OPTIONS")
	memberRoutes.HandleFunc("/jams/{code}/leave", jamHandler.Leave).Methods("POST", "OPTIONS")
	memberRoutes.HandleFunc("/jams/{code}/update-track", jamHandler.UpdateTrack).Methods("POST", "OPTIONS")
	memberRoutes.HandleFunc("/jams/{code}/participants", jamHandler.Participants).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

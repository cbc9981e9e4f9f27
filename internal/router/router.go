package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"smartreply-backend/internal/handlers"
	"smartreply-backend/internal/middleware"
	"smartreply-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	smartReplyHandler *handlers.SmartReplyHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	requestsPerMinute int,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	limiter := middleware.NewRateLimiter(requestsPerMinute, time.Minute)

	// Health check
	r.Get("/health", smartReplyHandler.Health)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Use(jwtAuth.Middleware)
			r.Post("/smart-replies", smartReplyHandler.Generate)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}

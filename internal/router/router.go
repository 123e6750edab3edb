package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"chefmate-backend/internal/handlers"
	"chefmate-backend/internal/middleware"
	"chefmate-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	sessionHandler *handlers.SessionHandler,
	chatHandler *handlers.ChatHandler,
	conversationHandler *handlers.ConversationHandler,
	evalHandler *handlers.EvalHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Session mint/refresh rate limiter (10 req/min per IP)
	sessionLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Stateless chat is public, so it gets its own limiter (30 req/min per IP)
	chatLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Session Routes (public) ────
		r.Route("/sessions", func(r chi.Router) {
			r.Use(sessionLimiter.Middleware)
			r.Post("/", sessionHandler.Create)
			r.Post("/refresh", sessionHandler.Refresh)
		})

		// ──── Chat Routes (public, stateless) ────
		r.Group(func(r chi.Router) {
			r.Use(chatLimiter.Middleware)
			r.Post("/chat", chatHandler.Chat)
		})

		// ──── Conversation Routes ────
		r.Route("/conversations", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)
			r.Get("/{id}", conversationHandler.Get)
			r.Delete("/{id}", conversationHandler.Delete)
			r.Post("/{id}/messages", conversationHandler.SendMessage)
			r.Post("/{id}/context", conversationHandler.AttachContext)
		})

		// ──── Evaluation Routes ────
		r.Route("/evals", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", evalHandler.Submit)
			r.Get("/", evalHandler.List)
			r.Get("/{id}", evalHandler.Get)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}

package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"neuroflash-backend/internal/handlers"
	"neuroflash-backend/internal/middleware"
	"neuroflash-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	studyHandler *handlers.StudyHandler,
	deckHandler *handlers.DeckHandler,
	userHandler *handlers.UserHandler,
	reviewLimiter *middleware.RateLimiter,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{frontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID", "Accept", "Origin"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// ──── WebSocket (token in query) ────
		r.Get("/ws", wsHub.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			// ──── Study Routes ────
			r.Route("/study", func(r chi.Router) {
				r.Get("/session/{deckID}", studyHandler.Session)
				r.With(reviewLimiter.Middleware).Post("/review/{flashcardID}", studyHandler.Review)
			})

			// ──── Deck Routes ────
			r.Route("/decks", func(r chi.Router) {
				r.Get("/", deckHandler.List)
				r.Post("/", deckHandler.Create)
				r.Get("/{id}", deckHandler.Get)
				r.Delete("/{id}", deckHandler.Delete)
				r.Get("/{id}/stats", deckHandler.Stats)
			})

			// ──── Settings & Stats ────
			r.Get("/settings", userHandler.GetSettings)
			r.Put("/settings", userHandler.UpdateSettings)
			r.Get("/stats/dashboard", userHandler.Dashboard)
		})
	})

	return r
}

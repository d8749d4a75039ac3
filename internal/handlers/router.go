package handlers

import (
	"net/http"

	"duo-checkin-backend/internal/middleware"
	"duo-checkin-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the HTTP API. mealImages may be nil when S3 is not configured.
func NewRouter(app *services.App, hub *services.WSHub, mealImages *services.MealImageService) http.Handler {
	userHandler := NewUserHandler(app)
	pairHandler := NewPairHandler(app)
	checkInHandler := NewCheckInHandler(app)
	messageHandler := NewMessageHandler(app)
	wsHandler := NewWebSocketHandler(hub, app)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(app.Users))

			r.Get("/users/me", userHandler.Me)
			r.Post("/users/logout", userHandler.Logout)
			r.Put("/users/me/push-token", userHandler.UpdatePushToken)
			r.Get("/snapshot", userHandler.Snapshot)

			r.Get("/partner", pairHandler.GetPartner)
			r.Post("/partner", pairHandler.Bind)
			r.Delete("/partner", pairHandler.Unbind)

			r.Put("/checkins/today", checkInHandler.SubmitToday)
			r.Get("/checkins", checkInHandler.List)
			r.Get("/checkins/partner", checkInHandler.ListPartner)
			r.Post("/ratings", checkInHandler.Rate)
			r.Get("/ratings", checkInHandler.ListRatings)

			r.Get("/messages", messageHandler.List)
			r.Post("/messages/{id}/read", messageHandler.MarkRead)
			r.Post("/reminders/rate", messageHandler.RemindRate)
			r.Post("/encouragements", messageHandler.Encourage)
			r.Get("/deliveries", messageHandler.Deliveries)

			if mealImages != nil {
				r.Post("/meal-images", NewMealImageHandler(mealImages).Upload)
			}
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

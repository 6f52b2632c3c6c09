package handlers

import (
	"github.com/go-chi/chi/v5"

	"social_automation/internal/ratelimit"
)

func RegisterNotificationRoutes(r chi.Router, h *NotificationHandler, limiter requestLimiter) {
	r.Route("/api/users/{user_id}/notifications", func(r chi.Router) {
		r.Use(RateLimitMiddleware(limiter, ratelimit.APIRead))

		r.Get("/", h.List)
		r.Get("/unread_count", h.UnreadCount)
		r.Get("/feed", h.RealtimeFeed)
		r.Post("/read", h.MarkRead)
		r.Post("/read_all", h.MarkAllRead)
	})
}

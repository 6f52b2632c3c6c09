package handlers

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"social_automation/internal/ratelimit"
)

type requestLimiter interface {
	Allow(ctx context.Context, rule ratelimit.Rule, origin, identity, operation string) bool
}

// RateLimitMiddleware guards a route group with the given rule, keyed by
// (caller address, user id when present, route pattern).
func RateLimitMiddleware(limiter requestLimiter, rule ratelimit.Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := remoteHost(r)
			identity := chi.URLParam(r, "user_id")
			operation := routeOperation(r)

			if !limiter.Allow(r.Context(), rule, origin, identity, operation) {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func routeOperation(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return r.URL.Path
	}
	if p := rc.RoutePattern(); p != "" {
		return p
	}
	return r.URL.Path
}

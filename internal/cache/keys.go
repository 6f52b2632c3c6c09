package cache

import (
	"fmt"
	"net/url"
	"strings"
)

// ratelimit:{rule}:{origin}:{identity}:{operation}
// Limits are per (origin, identity, operation) triple, never global.
func RateKey(rule, origin, identity, operation string) string {
	o := url.PathEscape(strings.TrimSpace(origin))
	if o == "" {
		o = "unknown"
	}
	id := url.PathEscape(strings.TrimSpace(identity))
	if id == "" {
		id = "anon"
	}
	op := url.PathEscape(strings.TrimSpace(operation))
	if op == "" {
		op = "default"
	}
	return fmt.Sprintf("ratelimit:%s:%s:%s:%s", rule, o, id, op)
}

// notify:feed:{user_id} holds the bounded realtime projection of a user's
// notifications, separate from the durable log.
func RealtimeFeedKey(userID int64) string {
	return fmt.Sprintf("notify:feed:%d", userID)
}

package models

import (
	"encoding/json"
	"time"
)

type Notification struct {
	ID        int64           `db:"id"`
	UserID    int64           `db:"user_id"`
	Type      string          `db:"type"` // post_published, post_failed, engagement, ...
	Title     string          `db:"title"`
	Message   string          `db:"message"`
	Payload   json.RawMessage `db:"payload"` // JSONB, may be NULL
	IsRead    bool            `db:"is_read"`
	CreatedAt time.Time       `db:"created_at"`
}

// NotificationRule is a per-user per-type opt-in/out. Absence of a row
// means the type is enabled (default-allow).
type NotificationRule struct {
	ID         int64           `db:"id"`
	UserID     int64           `db:"user_id"`
	Type       string          `db:"type"`
	Enabled    bool            `db:"enabled"`
	Conditions json.RawMessage `db:"conditions"`
}

type Pagination struct {
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	HasPrev  bool `json:"has_prev"`
}

package models

import "time"

type ScheduledPost struct {
	ID             int64      `db:"id"`
	AccountID      int64      `db:"account_id"`
	Content        string     `db:"content"`
	MediaURLs      []string   `db:"media_urls"`
	ScheduledTime  time.Time  `db:"scheduled_time"`
	Status         string     `db:"status"` // pending, published, failed, cancelled
	PlatformPostID *string    `db:"platform_post_id"`
	PostedAt       *time.Time `db:"posted_at"` // NULL until published
	LastError      *string    `db:"last_error"`
	CreatedAt      time.Time  `db:"created_at"`
}

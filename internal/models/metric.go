package models

import "time"

// MetricSample is one (account, metric type, day) observation. Collection
// upserts on that triple, so a later run in the same day overwrites.
type MetricSample struct {
	ID         int64     `db:"id"`
	AccountID  int64     `db:"account_id"`
	MetricType string    `db:"metric_type"` // followers, impressions, engagement, ...
	Value      float64   `db:"value"`
	MetricDate time.Time `db:"metric_date"` // date only, UTC
	CreatedAt  time.Time `db:"created_at"`
}

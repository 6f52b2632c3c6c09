package models

import "time"

type Account struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Platform    string    `db:"platform"` // twitter, instagram, linkedin, ...
	Handle      string    `db:"handle"`
	Credentials string    `db:"credentials"` // opaque token blob for the platform adapter
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
}

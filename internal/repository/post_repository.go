package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"social_automation/internal/models"
)

const (
	PostStatusPending   = "pending"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
	PostStatusCancelled = "cancelled"
)

type PostRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewPostRepository(db *pgxpool.Pool) *PostRepository {
	return &PostRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// GetDuePosts returns up to limit pending posts whose scheduled time has
// passed, oldest due first. Long-overdue posts are always picked before
// fresh ones, so a backlog larger than the batch cannot starve them.
func (r *PostRepository) GetDuePosts(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	if limit <= 0 {
		limit = 10
	}

	q := r.sb.
		Select(
			"id",
			"account_id",
			"content",
			"media_urls",
			"scheduled_time",
			"status",
			"platform_post_id",
			"posted_at",
			"last_error",
			"created_at",
		).
		From("scheduled_posts").
		Where(sq.Eq{"status": PostStatusPending}).
		Where(sq.LtOrEq{"scheduled_time": now}).
		OrderBy("scheduled_time ASC", "id ASC").
		Limit(uint64(limit))

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select due posts: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query due posts: %w", err)
	}
	defer rows.Close()

	res := make([]*models.ScheduledPost, 0, limit)

	for rows.Next() {
		var (
			p              models.ScheduledPost
			platformPostID pgtype.Text
			postedAt       pgtype.Timestamptz
			lastError      pgtype.Text
		)

		if err := rows.Scan(
			&p.ID,
			&p.AccountID,
			&p.Content,
			&p.MediaURLs,
			&p.ScheduledTime,
			&p.Status,
			&platformPostID,
			&postedAt,
			&lastError,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan due post row: %w", err)
		}

		if platformPostID.Valid {
			s := platformPostID.String
			p.PlatformPostID = &s
		}
		if postedAt.Valid {
			t := postedAt.Time
			p.PostedAt = &t
		}
		if lastError.Valid {
			s := lastError.String
			p.LastError = &s
		}

		res = append(res, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due post rows: %w", err)
	}

	return res, nil
}

// MarkPublished moves a post from pending to published and records the
// platform-side id. The status predicate makes the transition a no-op for
// any post that already left pending.
func (r *PostRepository) MarkPublished(ctx context.Context, id int64, platformPostID string) error {
	if id <= 0 {
		return fmt.Errorf("invalid post id")
	}

	q := r.sb.
		Update("scheduled_posts").
		Set("status", PostStatusPublished).
		Set("posted_at", sq.Expr("NOW()")).
		Set("platform_post_id", platformPostID).
		Set("last_error", nil).
		Where(sq.Eq{"id": id, "status": PostStatusPending})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build mark published: %w", err)
	}

	tag, err := r.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("mark post published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed is terminal: failed posts are never re-selected, they age out
// via retention.
func (r *PostRepository) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	if id <= 0 {
		return fmt.Errorf("invalid post id")
	}
	if errorMsg == "" {
		errorMsg = "unknown error"
	}

	q := r.sb.
		Update("scheduled_posts").
		Set("status", PostStatusFailed).
		Set("last_error", errorMsg).
		Where(sq.Eq{"id": id, "status": PostStatusPending})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build mark failed: %w", err)
	}

	tag, err := r.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("mark post failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus feeds the scheduled_posts_count gauges.
func (r *PostRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	q := r.sb.
		Select("status", "COUNT(*)").
		From("scheduled_posts").
		GroupBy("status")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count by status: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("count posts by status: %w", err)
	}
	defer rows.Close()

	res := make(map[string]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		res[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	return res, nil
}

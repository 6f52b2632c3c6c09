package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RetentionRepository owns the batch age-based deletes the sweeper runs.
// Each delete is a single statement; the sweeper computes the cutoffs.
type RetentionRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewRetentionRepository(db *pgxpool.Pool) *RetentionRepository {
	return &RetentionRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// DeleteAnalyticsOlderThan removes metric samples dated before cutoff.
func (r *RetentionRepository) DeleteAnalyticsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, nil
	}

	q := r.sb.
		Delete("account_metrics").
		Where(sq.Lt{"metric_date": cutoff})

	return r.exec(ctx, q, "analytics")
}

// DeleteConversationsOlderThan removes conversation rows (inbound message
// threads owned by the auto-reply layer) created before cutoff.
func (r *RetentionRepository) DeleteConversationsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, nil
	}

	q := r.sb.
		Delete("conversations").
		Where(sq.Lt{"created_at": cutoff})

	return r.exec(ctx, q, "conversations")
}

// DeleteFailedPostsOlderThan removes terminally failed scheduled posts
// created before cutoff. Pending and published posts are untouched.
func (r *RetentionRepository) DeleteFailedPostsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, nil
	}

	q := r.sb.
		Delete("scheduled_posts").
		Where(sq.Eq{"status": PostStatusFailed}).
		Where(sq.Lt{"created_at": cutoff})

	return r.exec(ctx, q, "failed posts")
}

func (r *RetentionRepository) exec(ctx context.Context, q sq.DeleteBuilder, what string) (int64, error) {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s cleanup: %w", what, err)
	}

	tag, err := r.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("cleanup %s: %w", what, err)
	}

	return tag.RowsAffected(), nil
}

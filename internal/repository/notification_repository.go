package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"social_automation/internal/models"
)

type NotificationRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Create appends one durable notification row. The row is immutable after
// creation except for is_read.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n == nil {
		return fmt.Errorf("notification is nil")
	}
	if n.UserID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	if n.Type == "" {
		return fmt.Errorf("type is empty")
	}

	var payload any
	if len(n.Payload) > 0 {
		payload = n.Payload
	}

	q := r.sb.
		Insert("notifications").
		Columns("user_id", "type", "title", "message", "payload", "is_read").
		Values(n.UserID, n.Type, n.Title, n.Message, payload, false).
		Suffix("RETURNING id, created_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert notification: %w", err)
	}

	if err := r.db.QueryRow(ctx, sqlStr, args...).Scan(&n.ID, &n.CreatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	n.IsRead = false
	return nil
}

// List returns one page of a user's notifications, newest first, plus the
// total matching the same filter.
func (r *NotificationRepository) List(ctx context.Context, userID int64, limit, offset int, unreadOnly bool) ([]*models.Notification, int, error) {
	if userID <= 0 {
		return nil, 0, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	filters := sq.And{
		sq.Eq{"user_id": userID},
	}
	if unreadOnly {
		filters = append(filters, sq.Eq{"is_read": false})
	}

	countQuery := r.sb.
		Select("COUNT(*)").
		From("notifications").
		Where(filters)

	countSQL, countArgs, err := countQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count notifications: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	dataQuery := r.sb.
		Select("id", "user_id", "type", "title", "message", "payload", "is_read", "created_at").
		From("notifications").
		Where(filters).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	dataSQL, dataArgs, err := dataQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build select notifications: %w", err)
	}

	rows, err := r.db.Query(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	res := make([]*models.Notification, 0, limit)
	for rows.Next() {
		var (
			n       models.Notification
			payload []byte
		)
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.Title,
			&n.Message,
			&payload,
			&n.IsRead,
			&n.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan notification row: %w", err)
		}
		n.Payload = payload
		res = append(res, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notification rows: %w", err)
	}

	return res, int(total), nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}

	q := r.sb.
		Select("COUNT(*)").
		From("notifications").
		Where(sq.Eq{"user_id": userID, "is_read": false})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build unread count: %w", err)
	}

	var count int64
	if err := r.db.QueryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

// MarkRead flips is_read for the given ids. Ids that are already read or
// belong to another user are skipped silently, so the call is idempotent.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID int64, ids []int64) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	if len(ids) == 0 {
		return nil
	}

	q := r.sb.
		Update("notifications").
		Set("is_read", true).
		Where(sq.Eq{"user_id": userID, "id": ids, "is_read": false})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build mark read: %w", err)
	}

	if _, err := r.db.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}

	q := r.sb.
		Update("notifications").
		Set("is_read", true).
		Where(sq.Eq{"user_id": userID, "is_read": false})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build mark all read: %w", err)
	}

	if _, err := r.db.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// GetRule returns the per-user opt-in/out row for a notification type, or
// ErrNotFound when no rule exists (which callers treat as enabled).
func (r *NotificationRepository) GetRule(ctx context.Context, userID int64, typ string) (*models.NotificationRule, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if typ == "" {
		return nil, fmt.Errorf("type is empty")
	}

	q := r.sb.
		Select("id", "user_id", "type", "enabled", "conditions").
		From("notification_rules").
		Where(sq.Eq{"user_id": userID, "type": typ}).
		Limit(1)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get rule: %w", err)
	}

	var (
		rule       models.NotificationRule
		conditions pgtype.Text
	)
	err = r.db.QueryRow(ctx, sqlStr, args...).Scan(
		&rule.ID,
		&rule.UserID,
		&rule.Type,
		&rule.Enabled,
		&conditions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get notification rule: %w", err)
	}

	if conditions.Valid {
		rule.Conditions = []byte(conditions.String)
	}

	return &rule, nil
}

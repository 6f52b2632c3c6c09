package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social_automation/internal/models"
)

type AccountRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invalid account id")
	}

	q := r.sb.
		Select("id", "user_id", "platform", "handle", "credentials", "is_active", "created_at").
		From("accounts").
		Where(sq.Eq{"id": id}).
		Limit(1)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get account: %w", err)
	}

	var a models.Account
	err = r.db.QueryRow(ctx, sqlStr, args...).Scan(
		&a.ID,
		&a.UserID,
		&a.Platform,
		&a.Handle,
		&a.Credentials,
		&a.IsActive,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &a, nil
}

// ListActive returns the accounts metric collection and dispatch operate
// on. Inactive accounts are invisible to the background loops.
func (r *AccountRepository) ListActive(ctx context.Context) ([]*models.Account, error) {
	q := r.sb.
		Select("id", "user_id", "platform", "handle", "credentials", "is_active", "created_at").
		From("accounts").
		Where(sq.Eq{"is_active": true}).
		OrderBy("id ASC")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list active accounts: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query active accounts: %w", err)
	}
	defer rows.Close()

	var res []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.Platform,
			&a.Handle,
			&a.Credentials,
			&a.IsActive,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		res = append(res, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}

	return res, nil
}

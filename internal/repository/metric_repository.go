package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"social_automation/internal/models"
)

type MetricRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewMetricRepository(db *pgxpool.Pool) *MetricRepository {
	return &MetricRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Upsert writes one sample keyed by (account_id, metric_type, metric_date).
// A later collection run in the same day overwrites the value instead of
// producing a duplicate row.
func (r *MetricRepository) Upsert(ctx context.Context, sample *models.MetricSample) error {
	if sample == nil {
		return fmt.Errorf("sample is nil")
	}
	if sample.AccountID <= 0 {
		return fmt.Errorf("invalid account id")
	}
	if sample.MetricType == "" {
		return fmt.Errorf("metric_type is empty")
	}
	if sample.MetricDate.IsZero() {
		return fmt.Errorf("metric_date is zero")
	}

	q := r.sb.
		Insert("account_metrics").
		Columns("account_id", "metric_type", "value", "metric_date").
		Values(sample.AccountID, sample.MetricType, sample.Value, sample.MetricDate).
		Suffix(`
ON CONFLICT (account_id, metric_type, metric_date)
DO UPDATE SET
	value = EXCLUDED.value,
	created_at = NOW()
`)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert metric sql: %w", err)
	}

	if _, err := r.db.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert metric: %w", err)
	}

	return nil
}

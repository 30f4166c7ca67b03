package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"filedesk/internal/domain"
)

type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Insert(ctx context.Context, log *domain.ActivityLog) error {
	query := `
        INSERT INTO activity_logs (user_id, action, details)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, log.UserID, log.Action, log.Details).
		Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity log: %w", err)
	}
	return nil
}

// List возвращает журнал от новых к старым вместе с именем актора.
func (r *ActivityRepository) List(ctx context.Context, skip, limit int) ([]domain.ActivityLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var logs []domain.ActivityLog
	query := `
        SELECT l.id, l.user_id, u.username AS username, l.action, l.details, l.created_at
        FROM activity_logs l
        LEFT JOIN users u ON u.id = l.user_id
        ORDER BY l.created_at DESC, l.id DESC
        LIMIT $1 OFFSET $2`

	if err := r.db.SelectContext(ctx, &logs, query, limit, skip); err != nil {
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return logs, nil
}

func (r *ActivityRepository) Recent(ctx context.Context, n int) ([]domain.ActivityLog, error) {
	return r.List(ctx, 0, n)
}

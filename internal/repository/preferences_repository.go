package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"filedesk/internal/domain"
)

type PreferencesRepository struct {
	db *sqlx.DB
}

func NewPreferencesRepository(db *sqlx.DB) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

// GetOrCreate возвращает настройки пользователя, создавая строку со
// значениями по умолчанию при первом обращении.
func (r *PreferencesRepository) GetOrCreate(ctx context.Context, userID int64) (*domain.UserPreferences, error) {
	query := `
        INSERT INTO user_preferences (user_id)
        VALUES ($1)
        ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
        RETURNING *`

	var prefs domain.UserPreferences
	if err := r.db.GetContext(ctx, &prefs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return &prefs, nil
}

func (r *PreferencesRepository) Update(ctx context.Context, prefs *domain.UserPreferences) error {
	query := `
        UPDATE user_preferences
        SET view_mode = $1,
            visible_columns = $2,
            sort_key = $3,
            sort_direction = $4,
            theme = $5
        WHERE user_id = $6
        RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		prefs.ViewMode, prefs.VisibleColumns, prefs.SortKey, prefs.SortDirection, prefs.Theme, prefs.UserID,
	).Scan(&prefs.ID)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	return nil
}

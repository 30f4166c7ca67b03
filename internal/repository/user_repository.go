package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"filedesk/internal/domain"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Ключ advisory-замка, сериализующего регистрацию. Под READ COMMITTED
// подзапрос с COUNT(*) не видит чужих незакоммиченных вставок, и две
// одновременные первые регистрации дали бы двух администраторов.
const registrationLockID = 815001

// Create регистрирует пользователя. Признак администратора вычисляется
// внутри той же вставки из количества строк; замок держит параллельную
// регистрацию до коммита, так что администратором становится ровно
// первый пользователь.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, registrationLockID); err != nil {
		return fmt.Errorf("failed to serialize registration: %w", err)
	}

	query := `
        INSERT INTO users (username, hashed_password, is_admin)
        VALUES ($1, $2, (SELECT COUNT(*) FROM users) = 0)
        RETURNING id, is_admin`

	err = tx.QueryRowContext(ctx, query, user.Username, user.HashedPassword).
		Scan(&user.ID, &user.IsAdmin)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("%w: username %s", domain.ErrAlreadyExists, user.Username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE username = $1`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, username)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) List(ctx context.Context, search string, skip, limit int) ([]domain.User, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var users []domain.User
	var err error
	if search != "" {
		query := `SELECT * FROM users WHERE username ILIKE $1 ORDER BY id LIMIT $2 OFFSET $3`
		err = r.db.SelectContext(ctx, &users, query, "%"+search+"%", limit, skip)
	} else {
		query := `SELECT * FROM users ORDER BY id LIMIT $1 OFFSET $2`
		err = r.db.SelectContext(ctx, &users, query, limit, skip)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `UPDATE users SET username = $1, hashed_password = $2, is_admin = $3 WHERE id = $4`

	res, err := r.db.ExecContext(ctx, query, user.Username, user.HashedPassword, user.IsAdmin, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %d", domain.ErrNotFound, user.ID)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	return nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

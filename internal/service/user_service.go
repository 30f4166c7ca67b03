package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"filedesk/internal/auth"
	"filedesk/internal/domain"
	"filedesk/internal/repository"
)

// UserService — регистрация, аутентификация и управление
// пользователями.
type UserService struct {
	users    *repository.UserRepository
	prefs    *repository.PreferencesRepository
	secret   string
	tokenTTL time.Duration
	logger   *zap.Logger
}

func NewUserService(
	users *repository.UserRepository,
	prefs *repository.PreferencesRepository,
	secret string,
	tokenTTL time.Duration,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		users:    users,
		prefs:    prefs,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// Register создаёт пользователя. Первый зарегистрированный становится
// администратором — это решает вставка в репозитории.
func (s *UserService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:       username,
		HashedPassword: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.String("username", user.Username),
		zap.Bool("is_admin", user.IsAdmin))
	return user, nil
}

// Login проверяет пароль и выписывает bearer-токен.
func (s *UserService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid credentials", domain.ErrForbidden)
	}
	if !auth.CheckPassword(password, user.HashedPassword) {
		return "", nil, fmt.Errorf("%w: invalid credentials", domain.ErrForbidden)
	}

	token, err := auth.GenerateToken(user.Username, s.secret, s.tokenTTL)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Count доступен без аутентификации: клиент по нулю пользователей
// понимает, что система не инициализирована.
func (s *UserService) Count(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}

func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, search string, skip, limit int) ([]domain.User, error) {
	return s.users.List(ctx, search, skip, limit)
}

// ChangePassword меняет пароль самому себе либо администратором.
func (s *UserService) ChangePassword(ctx context.Context, actor *domain.User, targetID int64, newPassword string) error {
	if actor.ID != targetID && !actor.IsAdmin {
		return fmt.Errorf("%w: cannot change another user's password", domain.ErrForbidden)
	}
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	target.HashedPassword = hash
	return s.users.Update(ctx, target)
}

// SetAdmin выдаёт или снимает права администратора. Администратор не
// может снять права сам с себя, чтобы в системе не осталось ноль
// администраторов по ошибке.
func (s *UserService) SetAdmin(ctx context.Context, actor *domain.User, targetID int64, isAdmin bool) (*domain.User, error) {
	if !actor.IsAdmin {
		return nil, fmt.Errorf("%w: admin privileges required", domain.ErrForbidden)
	}
	if actor.ID == targetID && !isAdmin {
		return nil, fmt.Errorf("%w: cannot revoke own admin role", domain.ErrForbidden)
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	target.IsAdmin = isAdmin
	if err := s.users.Update(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

func (s *UserService) Delete(ctx context.Context, actor *domain.User, targetID int64) error {
	if !actor.IsAdmin {
		return fmt.Errorf("%w: admin privileges required", domain.ErrForbidden)
	}
	if actor.ID == targetID {
		return fmt.Errorf("%w: cannot delete own account", domain.ErrForbidden)
	}
	return s.users.Delete(ctx, targetID)
}

func (s *UserService) Preferences(ctx context.Context, userID int64) (*domain.UserPreferences, error) {
	return s.prefs.GetOrCreate(ctx, userID)
}

// UpdatePreferences перезаписывает настройки целиком; незаполненные
// поля сохраняют прежние значения.
func (s *UserService) UpdatePreferences(ctx context.Context, userID int64, upd domain.UserPreferences) (*domain.UserPreferences, error) {
	prefs, err := s.prefs.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.ViewMode != "" {
		prefs.ViewMode = upd.ViewMode
	}
	if upd.VisibleColumns != "" {
		prefs.VisibleColumns = upd.VisibleColumns
	}
	if upd.SortKey != "" {
		prefs.SortKey = upd.SortKey
	}
	if upd.SortDirection != "" {
		prefs.SortDirection = upd.SortDirection
	}
	if upd.Theme != "" {
		prefs.Theme = upd.Theme
	}

	if err := s.prefs.Update(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

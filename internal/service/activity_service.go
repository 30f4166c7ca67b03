package service

import (
	"context"

	"go.uber.org/zap"

	"filedesk/internal/domain"
	"filedesk/internal/repository"
)

// ActivityService пишет журнал действий. Запись не должна ронять
// основную операцию: ошибки журнала логируются и проглатываются.
type ActivityService struct {
	repo   *repository.ActivityRepository
	logger *zap.Logger
}

func NewActivityService(repo *repository.ActivityRepository, logger *zap.Logger) *ActivityService {
	return &ActivityService{repo: repo, logger: logger}
}

// Record фиксирует действие пользователя. Ошибка записи не
// возвращается наверх.
func (s *ActivityService) Record(ctx context.Context, user *domain.User, action, details string) {
	entry := &domain.ActivityLog{
		Action:  action,
		Details: details,
	}
	if user != nil {
		entry.UserID = &user.ID
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Warn("failed to record activity",
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *ActivityService) List(ctx context.Context, skip, limit int) ([]domain.ActivityLog, error) {
	return s.repo.List(ctx, skip, limit)
}

func (s *ActivityService) Recent(ctx context.Context, n int) ([]domain.ActivityLog, error) {
	return s.repo.Recent(ctx, n)
}

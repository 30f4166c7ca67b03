package service

import (
	"context"

	"go.uber.org/zap"

	"filedesk/internal/domain"
	"filedesk/internal/repository"
)

// NotificationService управляет внутренними уведомлениями.
type NotificationService struct {
	repo   *repository.NotificationRepository
	logger *zap.Logger
}

func NewNotificationService(repo *repository.NotificationRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger}
}

// Notify создаёт уведомление. Как и журнал активности, доставка
// уведомления не роняет вызвавшую операцию.
func (s *NotificationService) Notify(ctx context.Context, n *domain.Notification) {
	if err := s.repo.Insert(ctx, n); err != nil {
		s.logger.Warn("failed to create notification",
			zap.Int64("user_id", n.UserID),
			zap.String("type", n.Type),
			zap.Error(err))
	}
}

func (s *NotificationService) ListForUser(ctx context.Context, userID int64, unreadOnly bool, skip, limit int) ([]domain.Notification, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly, skip, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID int64) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) error {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, id, userID int64) error {
	return s.repo.Delete(ctx, id, userID)
}

func (s *NotificationService) Clear(ctx context.Context, userID int64) error {
	return s.repo.DeleteAllForUser(ctx, userID)
}

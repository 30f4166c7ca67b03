package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"filedesk/internal/domain"
	"filedesk/internal/repository"
)

// TaskService — файлы как рабочие задания: назначение исполнителю,
// статусы, сроки и сводные метрики.
type TaskService struct {
	files         *repository.FileRepository
	users         *repository.UserRepository
	activity      *ActivityService
	notifications *NotificationService
	logger        *zap.Logger
}

func NewTaskService(
	files *repository.FileRepository,
	users *repository.UserRepository,
	activity *ActivityService,
	notifications *NotificationService,
	logger *zap.Logger,
) *TaskService {
	return &TaskService{
		files:         files,
		users:         users,
		activity:      activity,
		notifications: notifications,
		logger:        logger,
	}
}

// Assign назначает файл исполнителю. Доступно только администратору.
// Статус сбрасывается в Pending, исполнитель получает уведомление.
func (s *TaskService) Assign(ctx context.Context, actor *domain.User, fileID, assigneeID int64, instruction *string, dueDate *time.Time) (*domain.FileRecord, error) {
	if !actor.IsAdmin {
		return nil, fmt.Errorf("%w: only admins can assign files", domain.ErrForbidden)
	}

	rec, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		return nil, err
	}

	if err := s.files.UpdateAssignment(ctx, fileID, assigneeID, instruction, dueDate); err != nil {
		return nil, err
	}

	rec.AssignedToID = &assigneeID
	rec.Status = domain.StatusPending
	if instruction != nil {
		rec.Instruction = instruction
	}
	if dueDate != nil {
		rec.DueDate = dueDate
	}

	// Самоназначение не уведомляем.
	if assignee.ID != actor.ID {
		message := fmt.Sprintf("You have been assigned %q", rec.Filename)
		if dueDate != nil {
			message += fmt.Sprintf(", due %s", dueDate.Format("2006-01-02"))
		}
		s.notifications.Notify(ctx, &domain.Notification{
			UserID:        assignee.ID,
			Title:         "New task assigned",
			Message:       message,
			Type:          domain.NotificationTaskAssigned,
			IsUrgent:      dueDate != nil,
			RelatedFileID: &rec.ID,
		})
	}

	s.activity.Record(ctx, actor, domain.ActionAssign,
		fmt.Sprintf("%s in %s assigned to %s", rec.Filename, rec.Folder, assignee.Username))
	return rec, nil
}

// SetStatus меняет статус задачи. Разрешено исполнителю и
// администратору; значение обязано входить в перечисление задач.
func (s *TaskService) SetStatus(ctx context.Context, actor *domain.User, fileID int64, status string) (*domain.FileRecord, error) {
	if !domain.ValidTaskStatus(status) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTransition, status)
	}

	rec, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	assigned := rec.AssignedToID != nil && *rec.AssignedToID == actor.ID
	if !assigned && !actor.IsAdmin {
		return nil, fmt.Errorf("%w: only the assignee or an admin can change the status", domain.ErrForbidden)
	}

	if err := s.files.UpdateStatus(ctx, fileID, status); err != nil {
		return nil, err
	}
	rec.Status = status

	s.activity.Record(ctx, actor, domain.ActionUpdateStatus,
		fmt.Sprintf("%s in %s set to %s", rec.Filename, rec.Folder, status))
	return rec, nil
}

// SetInstruction обновляет текст задания. Разрешено владельцу файла и
// администратору.
func (s *TaskService) SetInstruction(ctx context.Context, actor *domain.User, fileID int64, instruction string) (*domain.FileRecord, error) {
	rec, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && rec.OwnerID != actor.ID {
		return nil, fmt.Errorf("%w: only the owner or an admin can edit the instruction", domain.ErrForbidden)
	}

	if err := s.files.UpdateInstruction(ctx, fileID, instruction); err != nil {
		return nil, err
	}
	rec.Instruction = &instruction

	s.activity.Record(ctx, actor, domain.ActionUpdate,
		fmt.Sprintf("instruction updated for %s in %s", rec.Filename, rec.Folder))
	return rec, nil
}

// AssignedTo возвращает задачи исполнителя с вычисленной просрочкой.
func (s *TaskService) AssignedTo(ctx context.Context, userID int64, now time.Time) ([]domain.FileListEntry, error) {
	records, err := s.files.AssignedTo(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toEntries(records, now), nil
}

// AllAssigned возвращает все назначенные файлы — обзор для
// администратора.
func (s *TaskService) AllAssigned(ctx context.Context, actor *domain.User, now time.Time) ([]domain.FileListEntry, error) {
	if !actor.IsAdmin {
		return nil, fmt.Errorf("%w: admin privileges required", domain.ErrForbidden)
	}

	records, err := s.files.AllAssigned(ctx)
	if err != nil {
		return nil, err
	}
	return toEntries(records, now), nil
}

// Metrics считает сводку по назначенным файлам. При нуле назначений
// доля выполнения равна нулю, а не NaN.
func (s *TaskService) Metrics(ctx context.Context, now time.Time) (*domain.TaskMetrics, error) {
	total, err := s.files.CountAssigned(ctx)
	if err != nil {
		return nil, err
	}
	completed, err := s.files.CountAssignedWithStatus(ctx, domain.StatusDone)
	if err != nil {
		return nil, err
	}
	pending, err := s.files.CountAssignedWithStatus(ctx, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	overdue, err := s.files.CountOverdue(ctx, now)
	if err != nil {
		return nil, err
	}

	m := &domain.TaskMetrics{
		TotalAssigned: total,
		Completed:     completed,
		Pending:       pending,
		Overdue:       overdue,
	}
	if total > 0 {
		m.CompletionRate = float64(completed) / float64(total) * 100
	}
	return m, nil
}

func toEntries(records []domain.FileRecord, now time.Time) []domain.FileListEntry {
	entries := make([]domain.FileListEntry, 0, len(records))
	for i := range records {
		entries = append(entries, domain.FileListEntry{
			FileRecord: records[i],
			Overdue:    records[i].Overdue(now),
		})
	}
	return entries
}

package service

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"filedesk/internal/domain"
	"filedesk/internal/repository"
	"filedesk/internal/storage"
)

// FolderStats — сводка по папке верхнего уровня.
type FolderStats struct {
	Path      string `json:"path"`
	FileCount int    `json:"file_count"`
	DiskBytes int64  `json:"disk_bytes"`
}

// DashboardStats — агрегат для панели администратора.
type DashboardStats struct {
	TotalFiles        int                  `json:"total_files"`
	TotalUsers        int                  `json:"total_users"`
	TotalDiskBytes    int64                `json:"total_disk_bytes"`
	Folders           []FolderStats        `json:"folders"`
	FileTypes         map[string]int       `json:"file_types"`
	TaskMetrics       *domain.TaskMetrics  `json:"task_metrics"`
	RecentActivity    []domain.ActivityLog `json:"recent_activity"`
	ActiveAssignments []domain.User        `json:"users"`
}

// StatsService собирает показатели для панели администратора.
type StatsService struct {
	files    *repository.FileRepository
	users    *repository.UserRepository
	store    storage.Storage
	tasks    *TaskService
	activity *ActivityService
	logger   *zap.Logger
}

func NewStatsService(
	files *repository.FileRepository,
	users *repository.UserRepository,
	store storage.Storage,
	tasks *TaskService,
	activity *ActivityService,
	logger *zap.Logger,
) *StatsService {
	return &StatsService{
		files:    files,
		users:    users,
		store:    store,
		tasks:    tasks,
		activity: activity,
		logger:   logger,
	}
}

// Dashboard собирает полную сводку одним вызовом.
func (s *StatsService) Dashboard(ctx context.Context, now time.Time) (*DashboardStats, error) {
	totalFiles, err := s.files.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}

	metrics, err := s.tasks.Metrics(ctx, now)
	if err != nil {
		return nil, err
	}

	folders, err := s.topFolders(ctx)
	if err != nil {
		return nil, err
	}

	types, err := s.fileTypes(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.activity.Recent(ctx, 10)
	if err != nil {
		return nil, err
	}

	userList, err := s.users.List(ctx, "", 0, 100)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		TotalFiles:        totalFiles,
		TotalUsers:        totalUsers,
		TotalDiskBytes:    s.store.DirSize("/"),
		Folders:           folders,
		FileTypes:         types,
		TaskMetrics:       metrics,
		RecentActivity:    recent,
		ActiveAssignments: userList,
	}, nil
}

// topFolders обходит папки верхнего уровня: количество записей в базе
// и фактический размер на диске.
func (s *StatsService) topFolders(ctx context.Context) ([]FolderStats, error) {
	entries, err := s.store.List("/")
	if err != nil {
		return nil, err
	}

	stats := make([]FolderStats, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		path := "/" + e.Name

		count, err := s.files.CountUnderFolder(ctx, path)
		if err != nil {
			return nil, err
		}
		stats = append(stats, FolderStats{
			Path:      path,
			FileCount: count,
			DiskBytes: e.Size,
		})
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Path < stats[j].Path })
	return stats, nil
}

// fileTypes считает распределение по расширениям.
func (s *StatsService) fileTypes(ctx context.Context) (map[string]int, error) {
	names, err := s.files.AllFilenames(ctx)
	if err != nil {
		return nil, err
	}

	types := make(map[string]int)
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if ext == "" {
			ext = "other"
		}
		types[ext]++
	}
	return types, nil
}

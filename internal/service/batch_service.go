package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"filedesk/internal/domain"
	"filedesk/internal/repository"
	"filedesk/internal/storage"
)

// BatchService — групповые операции над наборами файлов. Операции
// выполняются поэлементно с частичным успехом: отказ одного файла не
// прерывает остальные.
type BatchService struct {
	files    *repository.FileRepository
	store    storage.Storage
	fileSvc  *FileService
	taskSvc  *TaskService
	activity *ActivityService
	logger   *zap.Logger
}

func NewBatchService(
	files *repository.FileRepository,
	store storage.Storage,
	fileSvc *FileService,
	taskSvc *TaskService,
	activity *ActivityService,
	logger *zap.Logger,
) *BatchService {
	return &BatchService{
		files:    files,
		store:    store,
		fileSvc:  fileSvc,
		taskSvc:  taskSvc,
		activity: activity,
		logger:   logger,
	}
}

// BatchItemError — отказ по одному элементу группы.
type BatchItemError struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// BatchResult — итог групповой операции с частичным успехом.
type BatchResult struct {
	Succeeded []int64          `json:"succeeded"`
	Failed    []BatchItemError `json:"failed"`
}

// Delete удаляет набор файлов. В журнал пишется одна запись на весь
// пакет, а не по записи на файл.
func (s *BatchService) Delete(ctx context.Context, actor *domain.User, ids []int64) (*BatchResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: file ids are required", domain.ErrInvalidInput)
	}

	result := &BatchResult{Succeeded: []int64{}, Failed: []BatchItemError{}}
	for _, id := range ids {
		if err := s.deleteOne(ctx, actor, id); err != nil {
			result.Failed = append(result.Failed, BatchItemError{ID: id, Reason: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	s.activity.Record(ctx, actor, domain.ActionBulkDelete,
		fmt.Sprintf("%d deleted, %d failed", len(result.Succeeded), len(result.Failed)))
	return result, nil
}

// deleteOne повторяет логику FileService.Delete без записи в журнал:
// пакет отчитывается одной строкой.
func (s *BatchService) deleteOne(ctx context.Context, actor *domain.User, id int64) error {
	rec, err := s.files.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec.OwnerID != actor.ID && !actor.IsAdmin {
		return fmt.Errorf("%w: only the owner or an admin can delete a file", domain.ErrForbidden)
	}

	unlock := s.store.LockPath(rec.Folder, rec.Filename)
	defer unlock()

	blobs, err := s.files.BlobPathsForFiles(ctx, []int64{id})
	if err != nil {
		return err
	}
	if err := s.files.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.store.Delete(rec.Folder, rec.Filename); err != nil && !isNotFound(err) {
		s.logger.Warn("failed to remove file content after record deletion",
			zap.Int64("id", id), zap.Error(err))
	}
	s.fileSvc.removeBlobs(blobs)
	return nil
}

// Assign назначает набор файлов одному исполнителю.
func (s *BatchService) Assign(ctx context.Context, actor *domain.User, ids []int64, assigneeID int64, instruction *string, dueDate *time.Time) (*BatchResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: file ids are required", domain.ErrInvalidInput)
	}
	if !actor.IsAdmin {
		return nil, fmt.Errorf("%w: only admins can assign files", domain.ErrForbidden)
	}

	result := &BatchResult{Succeeded: []int64{}, Failed: []BatchItemError{}}
	for _, id := range ids {
		if _, err := s.taskSvc.Assign(ctx, actor, id, assigneeID, instruction, dueDate); err != nil {
			result.Failed = append(result.Failed, BatchItemError{ID: id, Reason: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	s.activity.Record(ctx, actor, domain.ActionBulkAssign,
		fmt.Sprintf("%d assigned, %d failed", len(result.Succeeded), len(result.Failed)))
	return result, nil
}

// Move переносит набор файлов в одну папку.
func (s *BatchService) Move(ctx context.Context, actor *domain.User, ids []int64, dstFolder string) (*BatchResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: file ids are required", domain.ErrInvalidInput)
	}
	dstFolder = storage.NormalizeFolder(dstFolder)

	result := &BatchResult{Succeeded: []int64{}, Failed: []BatchItemError{}}
	for _, id := range ids {
		if _, err := s.fileSvc.Move(ctx, actor, id, dstFolder); err != nil {
			result.Failed = append(result.Failed, BatchItemError{ID: id, Reason: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	s.activity.Record(ctx, actor, domain.ActionBulkMove,
		fmt.Sprintf("%d moved to %s, %d failed", len(result.Succeeded), dstFolder, len(result.Failed)))
	return result, nil
}

// DownloadZip стримит набор файлов одним zip-архивом прямо в w без
// буферизации на диске. Недоступные файлы пропускаются и
// перечисляются в манифесте _skipped.txt внутри архива.
func (s *BatchService) DownloadZip(ctx context.Context, actor *domain.User, ids []int64, w io.Writer) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: file ids are required", domain.ErrInvalidInput)
	}

	zw := zip.NewWriter(w)
	var skipped []string
	used := make(map[string]int)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, rc, _, err := s.fileSvc.Open(ctx, id)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("file %d: %v", id, err))
			continue
		}

		name := archiveName(rec.Filename, used)
		if err := writeZipEntry(zw, name, rec.CreatedAt, rc); err != nil {
			rc.Close()
			return fmt.Errorf("failed to write archive entry %s: %w", name, err)
		}
		rc.Close()
	}

	if err := writeSkippedManifest(zw, skipped); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	s.activity.Record(ctx, actor, domain.ActionDownload,
		fmt.Sprintf("archive of %d files (%d skipped)", len(ids)-len(skipped), len(skipped)))
	return nil
}

// DownloadDirZip стримит каталог со всеми подкаталогами одним архивом.
// Пути внутри архива сохраняют структуру относительно каталога.
func (s *BatchService) DownloadDirZip(ctx context.Context, actor *domain.User, dir string, w io.Writer) error {
	dir = storage.NormalizeFolder(dir)
	if !s.store.DirExists(dir) {
		return fmt.Errorf("%w: directory %s", domain.ErrNotFound, dir)
	}

	zw := zip.NewWriter(w)
	var skipped []string
	count := 0

	err := s.store.WalkFiles(func(folder, name string, _ int64, modTime time.Time) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if folder != dir && !strings.HasPrefix(folder, dir+"/") && dir != "/" {
			return nil
		}

		rel := strings.TrimPrefix(folder, dir)
		rel = strings.TrimPrefix(rel, "/")
		entryName := path.Join(rel, name)

		rc, _, err := s.store.Read(folder, name)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", entryName, err))
			return nil
		}
		defer rc.Close()

		if err := writeZipEntry(zw, entryName, modTime, rc); err != nil {
			return fmt.Errorf("failed to write archive entry %s: %w", entryName, err)
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}

	if err := writeSkippedManifest(zw, skipped); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	s.activity.Record(ctx, actor, domain.ActionDownload,
		fmt.Sprintf("archive of directory %s (%d files, %d skipped)", dir, count, len(skipped)))
	return nil
}

// archiveName разводит одинаковые имена внутри архива суффиксом (n).
func archiveName(name string, used map[string]int) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

func writeZipEntry(zw *zip.Writer, name string, modTime time.Time, r io.Reader) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modTime,
	}
	entry, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, r)
	return err
}

func writeSkippedManifest(zw *zip.Writer, skipped []string) error {
	if len(skipped) == 0 {
		return nil
	}

	entry, err := zw.Create("_skipped.txt")
	if err != nil {
		return fmt.Errorf("failed to write skip manifest: %w", err)
	}
	if _, err := io.WriteString(entry, strings.Join(skipped, "\n")+"\n"); err != nil {
		return fmt.Errorf("failed to write skip manifest: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"hash/adler32"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"filedesk/internal/domain"
	"filedesk/internal/repository"
	"filedesk/internal/storage"
)

// FileService — загрузка, выдача, версионирование и листинг файлов.
// База хранит метаданные, диск — содержимое; сервис отвечает за их
// согласованность.
type FileService struct {
	files    *repository.FileRepository
	store    storage.Storage
	activity *ActivityService
	logger   *zap.Logger
}

func NewFileService(
	files *repository.FileRepository,
	store storage.Storage,
	activity *ActivityService,
	logger *zap.Logger,
) *FileService {
	return &FileService{
		files:    files,
		store:    store,
		activity: activity,
		logger:   logger,
	}
}

// Upload принимает содержимое в папку. При overwrite=true существующий
// файл перезаписывается, а его прежнее содержимое остаётся версией.
func (s *FileService) Upload(ctx context.Context, actor *domain.User, folder, filename string, content io.Reader, overwrite bool) (*domain.FileRecord, error) {
	folder = storage.NormalizeFolder(folder)
	if err := storage.ValidFilename(filename); err != nil {
		return nil, err
	}
	if !storage.AllowedExtension(filename) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, filename)
	}

	unlock := s.store.LockPath(folder, filename)
	defer unlock()

	existing, err := s.files.GetByFolderAndName(ctx, folder, filename)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return s.uploadNew(ctx, actor, folder, filename, content)
	}
	if !overwrite {
		return nil, fmt.Errorf("%w: %s in %s", domain.ErrAlreadyExists, filename, folder)
	}
	return s.overwriteExisting(ctx, actor, existing, content)
}

func (s *FileService) uploadNew(ctx context.Context, actor *domain.User, folder, filename string, content io.Reader) (*domain.FileRecord, error) {
	size, err := s.store.Write(folder, filename, content, false)
	if err != nil {
		return nil, err
	}

	rec := &domain.FileRecord{
		Filename: filename,
		Folder:   folder,
		OwnerID:  actor.ID,
		Status:   domain.StatusPending,
		Size:     size,
	}
	if err := s.files.Create(ctx, rec); err != nil {
		// Компенсация: запись в базу не прошла, файл с диска убираем.
		if rmErr := s.store.Delete(folder, filename); rmErr != nil {
			s.logger.Error("failed to remove orphaned file after insert failure",
				zap.String("folder", folder),
				zap.String("filename", filename),
				zap.Error(rmErr))
		}
		return nil, err
	}

	s.activity.Record(ctx, actor, domain.ActionUpload, fmt.Sprintf("%s in %s", filename, folder))
	return rec, nil
}

// overwriteExisting сохраняет текущее содержимое как новую версию и
// только затем заменяет файл. Порядок гарантирует, что перезапись не
// теряет ни одного состояния.
func (s *FileService) overwriteExisting(ctx context.Context, actor *domain.User, rec *domain.FileRecord, content io.Reader) (*domain.FileRecord, error) {
	tx, err := s.files.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	versionNum, err := s.files.NextVersionNumber(ctx, tx, rec.ID)
	if err != nil {
		return nil, err
	}

	blobName := storage.VersionBlobName(rec.ID, versionNum, rec.Filename)
	blobSize, err := s.store.SnapshotVersion(rec.Folder, rec.Filename, blobName)
	if err != nil {
		return nil, err
	}

	cleanupBlob := func() {
		if rmErr := s.store.DeleteVersionBlob(blobName); rmErr != nil {
			s.logger.Error("failed to remove orphaned version blob",
				zap.String("blob", blobName), zap.Error(rmErr))
		}
	}

	version := &domain.FileVersion{
		FileID:        rec.ID,
		VersionNumber: versionNum,
		Filename:      rec.Filename,
		BlobPath:      blobName,
		Size:          blobSize,
		CreatedByID:   &actor.ID,
	}
	if err := s.files.CreateVersion(ctx, tx, version); err != nil {
		cleanupBlob()
		return nil, err
	}

	newSize, err := s.store.Write(rec.Folder, rec.Filename, content, true)
	if err != nil {
		cleanupBlob()
		return nil, err
	}

	// Новое содержимое уже на диске; откат базы после этой точки
	// обязан вернуть на место прежние байты из снимка.
	revert := func() {
		if _, rErr := s.store.RestoreVersion(blobName, rec.Folder, rec.Filename); rErr != nil {
			s.logger.Error("failed to revert overwritten content",
				zap.String("folder", rec.Folder), zap.String("filename", rec.Filename), zap.Error(rErr))
			return
		}
		cleanupBlob()
		s.logger.Warn("overwrite rolled back, previous content restored",
			zap.String("folder", rec.Folder), zap.String("filename", rec.Filename))
	}

	if err := s.files.UpdateSizeTx(ctx, tx, rec.ID, newSize); err != nil {
		revert()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		revert()
		return nil, fmt.Errorf("failed to commit overwrite: %w", err)
	}

	rec.Size = newSize
	s.activity.Record(ctx, actor, domain.ActionOverwrite,
		fmt.Sprintf("%s in %s (saved version %d)", rec.Filename, rec.Folder, versionNum))
	return rec, nil
}

// Download открывает содержимое файла по id. Размер возвращается для
// заголовка Content-Length.
func (s *FileService) Download(ctx context.Context, actor *domain.User, id int64) (*domain.FileRecord, io.ReadCloser, int64, error) {
	rec, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, nil, 0, err
	}

	rc, size, err := s.store.Read(rec.Folder, rec.Filename)
	if err != nil {
		return nil, nil, 0, err
	}

	s.activity.Record(ctx, actor, domain.ActionDownload, fmt.Sprintf("%s in %s", rec.Filename, rec.Folder))
	return rec, rc, size, nil
}

// DownloadByPath открывает файл по паре (folder, filename) — для
// клиентов, оперирующих путями вместо идентификаторов.
func (s *FileService) DownloadByPath(ctx context.Context, actor *domain.User, folder, filename string) (io.ReadCloser, int64, error) {
	folder = storage.NormalizeFolder(folder)
	if err := storage.ValidFilename(filename); err != nil {
		return nil, 0, err
	}

	rc, size, err := s.store.Read(folder, filename)
	if err != nil {
		return nil, 0, err
	}

	s.activity.Record(ctx, actor, domain.ActionDownload, fmt.Sprintf("%s in %s", filename, folder))
	return rc, size, nil
}

// Open отдаёт содержимое без записи в журнал — для предпросмотра
// и внутренних потребителей вроде архиватора.
func (s *FileService) Open(ctx context.Context, id int64) (*domain.FileRecord, io.ReadCloser, int64, error) {
	rec, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, nil, 0, err
	}

	rc, size, err := s.store.Read(rec.Folder, rec.Filename)
	if err != nil {
		return nil, nil, 0, err
	}
	return rec, rc, size, nil
}

// Delete удаляет файл, его запись и все blob версий. Удалять может
// владелец или администратор.
func (s *FileService) Delete(ctx context.Context, actor *domain.User, id int64) error {
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

	// Версии уходят каскадом вместе с записью.
	if err := s.files.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.store.Delete(rec.Folder, rec.Filename); err != nil && !isNotFound(err) {
		s.logger.Warn("failed to remove file content after record deletion",
			zap.String("folder", rec.Folder),
			zap.String("filename", rec.Filename),
			zap.Error(err))
	}
	s.removeBlobs(blobs)

	s.activity.Record(ctx, actor, domain.ActionDelete, fmt.Sprintf("%s in %s", rec.Filename, rec.Folder))
	return nil
}

// List объединяет содержимое каталога на диске с записями базы.
// Каталоги синтезируются, найденные на диске неучтённые файлы
// регистрируются автоматически, а записи без файла на диске
// показываются с нулевым размером.
func (s *FileService) List(ctx context.Context, actor *domain.User, folder string, now time.Time) ([]domain.FileListEntry, error) {
	folder = storage.NormalizeFolder(folder)

	diskEntries, err := s.store.List(folder)
	if err != nil {
		return nil, err
	}

	records, err := s.files.ListByFolder(ctx, folder)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*domain.FileRecord, len(records))
	for i := range records {
		byName[records[i].Filename] = &records[i]
	}

	entries := make([]domain.FileListEntry, 0, len(diskEntries))
	seen := make(map[string]bool, len(diskEntries))

	for _, de := range diskEntries {
		if de.IsDir {
			entries = append(entries, directoryEntry(folder, de))
			continue
		}
		seen[de.Name] = true

		rec, ok := byName[de.Name]
		if !ok {
			rec, err = s.registerFound(ctx, actor, folder, de.Name, de.Size)
			if err != nil {
				s.logger.Warn("failed to register file found on disk",
					zap.String("folder", folder),
					zap.String("filename", de.Name),
					zap.Error(err))
				continue
			}
		} else if rec.Size != de.Size {
			rec.Size = de.Size
			if err := s.files.UpdateSize(ctx, rec.ID, de.Size); err != nil {
				s.logger.Warn("failed to refresh file size", zap.Int64("id", rec.ID), zap.Error(err))
			}
		}

		entries = append(entries, domain.FileListEntry{
			FileRecord: *rec,
			Overdue:    rec.Overdue(now),
		})
	}

	// Записи, у которых файл с диска пропал: показываем с нулевым
	// размером, чтобы метаданные задачи не исчезали молча.
	for i := range records {
		rec := &records[i]
		if seen[rec.Filename] {
			continue
		}
		s.logger.Warn("file record has no content on disk",
			zap.Int64("id", rec.ID),
			zap.String("folder", rec.Folder),
			zap.String("filename", rec.Filename))

		ghost := *rec
		ghost.Size = 0
		entries = append(entries, domain.FileListEntry{
			FileRecord: ghost,
			Overdue:    rec.Overdue(now),
		})
	}

	return entries, nil
}

// registerFound создаёт запись для файла, найденного на диске без
// строки в базе. Владельцем становится вызывающий, статус служебный.
func (s *FileService) registerFound(ctx context.Context, actor *domain.User, folder, filename string, size int64) (*domain.FileRecord, error) {
	rec := &domain.FileRecord{
		Filename: filename,
		Folder:   folder,
		OwnerID:  actor.ID,
		Status:   domain.StatusSynced,
		Size:     size,
	}
	if err := s.files.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// directoryEntry синтезирует элемент листинга для каталога. У каталогов
// нет строк в базе; идентификатор отрицателен и детерминирован от пути,
// чтобы фронтенд мог использовать его как ключ.
func directoryEntry(folder string, de storage.Entry) domain.FileListEntry {
	full := strings.TrimSuffix(folder, "/") + "/" + de.Name
	id := -int64(adler32.Checksum([]byte(full)))
	if id == 0 {
		id = -1
	}

	return domain.FileListEntry{
		FileRecord: domain.FileRecord{
			ID:        id,
			Filename:  de.Name,
			Folder:    folder,
			Status:    domain.StatusSynced,
			CreatedAt: de.ModTime,
			Size:      de.Size,
			IsDir:     true,
		},
	}
}

// Search выполняет расширенный поиск по метаданным.
func (s *FileService) Search(ctx context.Context, actor *domain.User, filter domain.SearchFilter, now time.Time) ([]domain.FileListEntry, error) {
	if filter.Folder != "" {
		filter.Folder = storage.NormalizeFolder(filter.Folder)
	}

	records, err := s.files.Search(ctx, filter, actor)
	if err != nil {
		return nil, err
	}
	return toEntries(records, now), nil
}

func (s *FileService) Details(ctx context.Context, id int64, now time.Time) (*domain.FileListEntry, error) {
	rec, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.FileListEntry{FileRecord: *rec, Overdue: rec.Overdue(now)}, nil
}

// Rename переименовывает файл в пределах его папки.
func (s *FileService) Rename(ctx context.Context, actor *domain.User, id int64, newName string) (*domain.FileRecord, error) {
	if err := storage.ValidFilename(newName); err != nil {
		return nil, err
	}
	if !storage.AllowedExtension(newName) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, newName)
	}

	rec, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != actor.ID && !actor.IsAdmin {
		return nil, fmt.Errorf("%w: only the owner or an admin can rename a file", domain.ErrForbidden)
	}
	if rec.Filename == newName {
		return rec, nil
	}

	unlock := s.store.LockPath(rec.Folder, rec.Filename)
	defer unlock()

	if dup, err := s.files.GetByFolderAndName(ctx, rec.Folder, newName); err != nil {
		return nil, err
	} else if dup != nil {
		return nil, fmt.Errorf("%w: %s in %s", domain.ErrAlreadyExists, newName, rec.Folder)
	}

	// Сначала диск, затем база; при ошибке базы переименовываем обратно.
	content, _, err := s.store.Read(rec.Folder, rec.Filename)
	if err != nil {
		return nil, err
	}
	written, err := s.store.Write(rec.Folder, newName, content, false)
	content.Close()
	if err != nil {
		return nil, err
	}

	oldName := rec.Filename
	rec.Filename = newName
	rec.Size = written
	if err := s.files.Update(ctx, rec); err != nil {
		if rmErr := s.store.Delete(rec.Folder, newName); rmErr != nil {
			s.logger.Error("failed to undo rename on disk", zap.Error(rmErr))
		}
		return nil, err
	}
	if err := s.store.Delete(rec.Folder, oldName); err != nil && !isNotFound(err) {
		s.logger.Warn("failed to remove old name after rename", zap.Error(err))
	}

	s.activity.Record(ctx, actor, domain.ActionUpdate,
		fmt.Sprintf("renamed %s to %s in %s", oldName, newName, rec.Folder))
	return rec, nil
}

// Move переносит файл в другую папку с сохранением имени.
func (s *FileService) Move(ctx context.Context, actor *domain.User, id int64, dstFolder string) (*domain.FileRecord, error) {
	dstFolder = storage.NormalizeFolder(dstFolder)

	rec, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != actor.ID && !actor.IsAdmin {
		return nil, fmt.Errorf("%w: only the owner or an admin can move a file", domain.ErrForbidden)
	}
	if rec.Folder == dstFolder {
		return rec, nil
	}

	unlock := s.store.LockPath(rec.Folder, rec.Filename)
	defer unlock()

	if dup, err := s.files.GetByFolderAndName(ctx, dstFolder, rec.Filename); err != nil {
		return nil, err
	} else if dup != nil {
		return nil, fmt.Errorf("%w: %s in %s", domain.ErrAlreadyExists, rec.Filename, dstFolder)
	}

	if err := s.store.Move(rec.Folder, rec.Filename, dstFolder); err != nil {
		return nil, err
	}

	srcFolder := rec.Folder
	if err := s.files.UpdateFolder(ctx, id, dstFolder); err != nil {
		if mvErr := s.store.Move(dstFolder, rec.Filename, srcFolder); mvErr != nil {
			s.logger.Error("failed to undo move on disk", zap.Error(mvErr))
		}
		return nil, err
	}
	rec.Folder = dstFolder

	s.activity.Record(ctx, actor, domain.ActionUpdate,
		fmt.Sprintf("moved %s from %s to %s", rec.Filename, srcFolder, dstFolder))
	return rec, nil
}

// CreateDirectory создаёт каталог на диске. Каталоги существуют только
// в файловой системе, строк в базе у них нет.
func (s *FileService) CreateDirectory(ctx context.Context, actor *domain.User, path string) error {
	if !actor.IsAdmin {
		return fmt.Errorf("%w: admin privileges required", domain.ErrForbidden)
	}
	path = storage.NormalizeFolder(path)
	if path == "/" {
		return fmt.Errorf("%w: directory name is required", domain.ErrInvalidInput)
	}

	if err := s.store.CreateDir(path); err != nil {
		return err
	}

	s.activity.Record(ctx, actor, domain.ActionCreateDirectory, path)
	return nil
}

// DeleteDirectory удаляет каталог. Только администратор; непустой
// каталог удаляется только с recursive=true: записи, версии и
// содержимое уходят вместе.
func (s *FileService) DeleteDirectory(ctx context.Context, actor *domain.User, path string, recursive bool) error {
	if !actor.IsAdmin {
		return fmt.Errorf("%w: admin privileges required", domain.ErrForbidden)
	}
	path = storage.NormalizeFolder(path)
	if path == "/" {
		return fmt.Errorf("%w: storage root", domain.ErrForbidden)
	}

	if !recursive {
		if err := s.store.DeleteDir(path, false); err != nil {
			return err
		}
		s.activity.Record(ctx, actor, domain.ActionDeleteDirectory, path)
		return nil
	}

	if !s.store.DirExists(path) {
		return fmt.Errorf("%w: directory %s", domain.ErrNotFound, path)
	}

	records, err := s.files.RecordsUnderFolder(ctx, path)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	blobs, err := s.files.BlobPathsForFiles(ctx, ids)
	if err != nil {
		return err
	}

	tx, err := s.files.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.files.DeleteUnderFolderTx(ctx, tx, path); err != nil {
		return err
	}
	if err := s.store.DeleteDir(path, true); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit directory deletion: %w", err)
	}

	s.removeBlobs(blobs)
	s.activity.Record(ctx, actor, domain.ActionDeleteDirectory,
		fmt.Sprintf("%s (recursive, %d files)", path, len(records)))
	return nil
}

// Sync регистрирует в базе все файлы, найденные на диске без записей.
// Только администратор.
func (s *FileService) Sync(ctx context.Context, actor *domain.User) (int, error) {
	if !actor.IsAdmin {
		return 0, fmt.Errorf("%w: admin privileges required", domain.ErrForbidden)
	}

	known := make(map[string]bool)
	all, err := s.files.RecordsUnderFolder(ctx, "/")
	if err != nil {
		return 0, err
	}
	for _, rec := range all {
		known[rec.Folder+"\x00"+rec.Filename] = true
	}

	registered := 0
	err = s.store.WalkFiles(func(folder, name string, size int64, _ time.Time) error {
		if known[folder+"\x00"+name] {
			return nil
		}
		if _, err := s.registerFound(ctx, actor, folder, name, size); err != nil {
			s.logger.Warn("failed to register file during sync",
				zap.String("folder", folder),
				zap.String("filename", name),
				zap.Error(err))
			return nil
		}
		registered++
		return nil
	})
	if err != nil {
		return registered, fmt.Errorf("failed to walk storage: %w", err)
	}

	if registered > 0 {
		s.activity.Record(ctx, actor, domain.ActionSync,
			fmt.Sprintf("registered %d files found on disk", registered))
	}
	return registered, nil
}

// Versions возвращает историю версий файла от новых к старым.
func (s *FileService) Versions(ctx context.Context, fileID int64) ([]domain.FileVersion, error) {
	if _, err := s.files.GetByID(ctx, fileID); err != nil {
		return nil, err
	}
	return s.files.VersionsByFile(ctx, fileID)
}

// DownloadVersion открывает содержимое конкретной версии.
func (s *FileService) DownloadVersion(ctx context.Context, fileID, versionID int64) (*domain.FileVersion, io.ReadCloser, error) {
	v, err := s.files.GetVersion(ctx, fileID, versionID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.store.OpenVersionBlob(v.BlobPath)
	if err != nil {
		return nil, nil, err
	}
	return v, rc, nil
}

// Restore возвращает файл к содержимому версии. Текущее содержимое
// перед восстановлением сохраняется новой версией; если содержимое
// уже совпадает, операция ничего не меняет.
func (s *FileService) Restore(ctx context.Context, actor *domain.User, fileID, versionID int64) (*domain.FileRecord, error) {
	rec, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != actor.ID && !actor.IsAdmin {
		return nil, fmt.Errorf("%w: only the owner or an admin can restore versions", domain.ErrForbidden)
	}

	v, err := s.files.GetVersion(ctx, fileID, versionID)
	if err != nil {
		return nil, err
	}

	unlock := s.store.LockPath(rec.Folder, rec.Filename)
	defer unlock()

	// Если файл пропал с диска, сохранять нечего — восстанавливаем
	// содержимое без промежуточной версии.
	same, err := s.store.SameContent(rec.Folder, rec.Filename, v.BlobPath)
	missing := isNotFound(err)
	if err != nil && !missing {
		return nil, err
	}
	if same {
		return rec, nil
	}

	tx, err := s.files.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var blobName string
	cleanupBlob := func() {
		if blobName == "" {
			return
		}
		if rmErr := s.store.DeleteVersionBlob(blobName); rmErr != nil {
			s.logger.Error("failed to remove orphaned version blob", zap.Error(rmErr))
		}
	}

	if !missing {
		versionNum, err := s.files.NextVersionNumber(ctx, tx, rec.ID)
		if err != nil {
			return nil, err
		}

		blobName = storage.VersionBlobName(rec.ID, versionNum, rec.Filename)
		blobSize, err := s.store.SnapshotVersion(rec.Folder, rec.Filename, blobName)
		if err != nil {
			return nil, err
		}

		current := &domain.FileVersion{
			FileID:        rec.ID,
			VersionNumber: versionNum,
			Filename:      rec.Filename,
			BlobPath:      blobName,
			Size:          blobSize,
			CreatedByID:   &actor.ID,
		}
		if err := s.files.CreateVersion(ctx, tx, current); err != nil {
			cleanupBlob()
			return nil, err
		}
	}

	restoredSize, err := s.store.RestoreVersion(v.BlobPath, rec.Folder, rec.Filename)
	if err != nil {
		cleanupBlob()
		return nil, err
	}

	// Диск уже держит восстановленное содержимое; при откате базы
	// возвращаем прежние байты из снимка. Если файла до операции не
	// было, возвращать нечего — расхождение фиксируем в логе.
	revert := func() {
		if blobName == "" {
			s.logger.Warn("restore rolled back in database only, disk keeps the restored content",
				zap.String("folder", rec.Folder), zap.String("filename", rec.Filename))
			return
		}
		if _, rErr := s.store.RestoreVersion(blobName, rec.Folder, rec.Filename); rErr != nil {
			s.logger.Error("failed to revert restored content",
				zap.String("folder", rec.Folder), zap.String("filename", rec.Filename), zap.Error(rErr))
			return
		}
		cleanupBlob()
		s.logger.Warn("restore rolled back, previous content returned",
			zap.String("folder", rec.Folder), zap.String("filename", rec.Filename))
	}

	if err := s.files.UpdateSizeTx(ctx, tx, rec.ID, restoredSize); err != nil {
		revert()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		revert()
		return nil, fmt.Errorf("failed to commit restore: %w", err)
	}

	rec.Size = restoredSize
	s.activity.Record(ctx, actor, domain.ActionRestoreVersion,
		fmt.Sprintf("%s in %s restored to version %d", rec.Filename, rec.Folder, v.VersionNumber))
	return rec, nil
}

// removeBlobs чистит blob версий после удаления записей. Ошибки
// не фатальны: записи уже удалены, мусор на диске только занимает место.
func (s *FileService) removeBlobs(blobs []string) {
	for _, blob := range blobs {
		if err := s.store.DeleteVersionBlob(blob); err != nil {
			s.logger.Warn("failed to remove version blob", zap.String("blob", blob), zap.Error(err))
		}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

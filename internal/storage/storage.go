// storage.go
package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"filedesk/internal/domain"
)

const (
	// MaxUploadSize — максимальный размер содержимого, 100 MiB.
	// Проверяется потоково в Write, до завершения записи на диск.
	MaxUploadSize = 100 * 1024 * 1024

	tmpPrefix       = ".upload-"
	compareBufBytes = 64 * 1024
)

// Entry — элемент листинга каталога.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Storage определяет интерфейс физического хранилища. Логический файл
// адресуется парой (folder, filename); версии — именем blob в
// отдельной области, недоступной по пути папки.
type Storage interface {
	Write(folder, filename string, r io.Reader, overwrite bool) (int64, error)
	Read(folder, filename string) (io.ReadCloser, int64, error)
	Stat(folder, filename string) (int64, error)
	Delete(folder, filename string) error
	Move(srcFolder, filename, dstFolder string) error

	CreateDir(path string) error
	DeleteDir(path string, recursive bool) error
	DirExists(path string) bool
	List(folder string) ([]Entry, error)
	DirSize(path string) int64
	WalkFiles(fn func(folder, name string, size int64, modTime time.Time) error) error

	SnapshotVersion(folder, filename, blobName string) (int64, error)
	RestoreVersion(blobName, folder, filename string) (int64, error)
	OpenVersionBlob(blobName string) (io.ReadCloser, error)
	DeleteVersionBlob(blobName string) error
	SameContent(folder, filename, blobName string) (bool, error)

	// LockPath сериализует операции над одним (folder, filename).
	LockPath(folder, filename string) func()
}

// VersionBlobName строит имя blob версии: id файла, номер версии,
// короткий uuid от коллизий и исходное имя для удобства оператора.
func VersionBlobName(fileID int64, version int, filename string) string {
	return fmt.Sprintf("%d_%d_%s_%s", fileID, version, uuid.NewString()[:8], filename)
}

// Disk — реализация Storage поверх локальной файловой системы.
// Запись идёт во временный файл с последующим атомарным rename, чтобы
// читатели никогда не видели частичное содержимое.
type Disk struct {
	root         string
	versionsRoot string
	locker       *pathLocker
	logger       *zap.Logger
}

func NewDisk(root, versionsRoot string, logger *zap.Logger) (*Disk, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	absVersions, err := filepath.Abs(versionsRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve versions root: %w", err)
	}

	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	if err := os.MkdirAll(absVersions, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create versions root: %w", err)
	}

	return &Disk{
		root:         absRoot,
		versionsRoot: absVersions,
		locker:       newPathLocker(),
		logger:       logger,
	}, nil
}

// Root возвращает абсолютный корень хранилища.
func (d *Disk) Root() string {
	return d.root
}

// filePath строит проверенный абсолютный путь логического файла.
// Имя файла участвует в проверке вместе с папкой, чтобы симлинк на
// месте самого файла тоже был отсечён.
func (d *Disk) filePath(folder, filename string) (string, error) {
	if err := ValidFilename(filename); err != nil {
		return "", err
	}
	return Resolve(d.root, NormalizeFolder(folder)+"/"+filename)
}

// blobPath строит проверенный путь blob версии в области версий.
func (d *Disk) blobPath(blobName string) (string, error) {
	if err := ValidFilename(blobName); err != nil {
		return "", err
	}
	return filepath.Join(d.versionsRoot, blobName), nil
}

func (d *Disk) LockPath(folder, filename string) func() {
	return d.locker.Lock(NormalizeFolder(folder) + "/" + filename)
}

func (d *Disk) Write(folder, filename string, r io.Reader, overwrite bool) (int64, error) {
	path, err := d.filePath(folder, filename)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create folder: %w", err)
	}

	if _, err := os.Lstat(path); err == nil && !overwrite {
		return 0, fmt.Errorf("%w: %s", domain.ErrAlreadyExists, filename)
	}

	// Пишем во временный файл рядом с целью, затем атомарный rename.
	tmpPath := filepath.Join(filepath.Dir(path), tmpPrefix+uuid.NewString()[:8])
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	cleanup := func() {
		tmp.Close()
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			d.logger.Warn("failed to remove temp file", zap.String("path", tmpPath), zap.Error(rmErr))
		}
	}

	// Лимит размера проверяется в процессе копирования: лишние байты
	// не попадают на диск целиком, а перелив фиксируется по n.
	n, err := io.Copy(tmp, io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to write content: %w", err)
	}
	if n > MaxUploadSize {
		cleanup()
		return 0, fmt.Errorf("%w: max size is %d bytes", domain.ErrPayloadTooLarge, MaxUploadSize)
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to finalize write: %w", err)
	}

	return n, nil
}

func (d *Disk) Read(folder, filename string) (io.ReadCloser, int64, error) {
	path, err := d.filePath(folder, filename)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", domain.ErrNotFound, filename)
		}
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("%w: %s is a directory", domain.ErrNotFound, filename)
	}

	return f, info.Size(), nil
}

func (d *Disk) Stat(folder, filename string) (int64, error) {
	path, err := d.filePath(folder, filename)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", domain.ErrNotFound, filename)
		}
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", domain.ErrNotFound, filename)
	}

	return info.Size(), nil
}

func (d *Disk) Delete(folder, filename string) error {
	path, err := d.filePath(folder, filename)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, filename)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (d *Disk) Move(srcFolder, filename, dstFolder string) error {
	src, err := d.filePath(srcFolder, filename)
	if err != nil {
		return err
	}
	dst, err := d.filePath(dstFolder, filename)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, filename)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create destination folder: %w", err)
	}

	if err := os.Rename(src, dst); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, filename)
		}
		return fmt.Errorf("failed to move file: %w", err)
	}
	return nil
}

func (d *Disk) CreateDir(path string) error {
	abs, err := Resolve(d.root, path)
	if err != nil {
		return err
	}
	if abs == d.root {
		return fmt.Errorf("%w: root", domain.ErrAlreadyExists)
	}

	if _, err := os.Lstat(abs); err == nil {
		return fmt.Errorf("%w: directory %s", domain.ErrAlreadyExists, path)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

func (d *Disk) DeleteDir(path string, recursive bool) error {
	abs, err := Resolve(d.root, path)
	if err != nil {
		return err
	}
	// Сам корень хранилища удалять нельзя ни при каком флаге.
	if abs == d.root {
		return fmt.Errorf("%w: storage root", domain.ErrForbidden)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: directory %s", domain.ErrNotFound, path)
		}
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: directory %s", domain.ErrNotFound, path)
	}

	if recursive {
		if err := os.RemoveAll(abs); err != nil {
			return fmt.Errorf("failed to delete directory: %w", err)
		}
		return nil
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrDirNotEmpty, path)
	}

	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("failed to delete directory: %w", err)
	}
	return nil
}

func (d *Disk) DirExists(path string) bool {
	abs, err := Resolve(d.root, path)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.IsDir()
}

func (d *Disk) List(folder string) ([]Entry, error) {
	abs, err := Resolve(d.root, folder)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: path %s", domain.ErrNotFound, folder)
		}
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		// Недописанные временные файлы в листинг не попадают.
		if strings.HasPrefix(de.Name(), tmpPrefix) {
			continue
		}

		info, err := de.Info()
		if err != nil {
			d.logger.Warn("failed to stat directory entry", zap.String("name", de.Name()), zap.Error(err))
			continue
		}

		e := Entry{
			Name:    de.Name(),
			IsDir:   de.IsDir(),
			ModTime: info.ModTime(),
		}
		if de.IsDir() {
			e.Size = d.DirSize(filepath.ToSlash(filepath.Join(folder, de.Name())))
		} else {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// DirSize считает суммарный размер каталога рекурсивно, пропуская
// символические ссылки. Ошибки обхода игнорируются.
func (d *Disk) DirSize(path string) int64 {
	abs, err := Resolve(d.root, path)
	if err != nil {
		return 0
	}

	var total int64
	_ = filepath.Walk(abs, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// WalkFiles обходит все обычные файлы под корнем и сообщает их
// логические координаты (folder, name).
func (d *Disk) WalkFiles(fn func(folder, name string, size int64, modTime time.Time) error) error {
	return filepath.Walk(d.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.Mode().IsRegular() || strings.HasPrefix(info.Name(), tmpPrefix) {
			return nil
		}

		rel, err := filepath.Rel(d.root, filepath.Dir(path))
		if err != nil {
			return nil
		}
		folder := "/"
		if rel != "." {
			folder = "/" + filepath.ToSlash(rel)
		}

		return fn(folder, info.Name(), info.Size(), info.ModTime())
	})
}

func (d *Disk) SnapshotVersion(folder, filename, blobName string) (int64, error) {
	src, err := d.filePath(folder, filename)
	if err != nil {
		return 0, err
	}
	dst, err := d.blobPath(blobName)
	if err != nil {
		return 0, err
	}

	n, err := copyFileAtomic(src, dst)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", domain.ErrNotFound, filename)
		}
		return 0, fmt.Errorf("failed to snapshot version: %w", err)
	}
	return n, nil
}

func (d *Disk) RestoreVersion(blobName, folder, filename string) (int64, error) {
	src, err := d.blobPath(blobName)
	if err != nil {
		return 0, err
	}
	dst, err := d.filePath(folder, filename)
	if err != nil {
		return 0, err
	}

	n, err := copyFileAtomic(src, dst)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: version blob %s", domain.ErrNotFound, blobName)
		}
		return 0, fmt.Errorf("failed to restore version: %w", err)
	}
	return n, nil
}

func (d *Disk) OpenVersionBlob(blobName string) (io.ReadCloser, error) {
	path, err := d.blobPath(blobName)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: version blob %s", domain.ErrNotFound, blobName)
		}
		return nil, fmt.Errorf("failed to open version blob: %w", err)
	}
	return f, nil
}

func (d *Disk) DeleteVersionBlob(blobName string) error {
	path, err := d.blobPath(blobName)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete version blob: %w", err)
	}
	return nil
}

// SameContent сравнивает текущее содержимое файла с blob версии побайтно.
func (d *Disk) SameContent(folder, filename, blobName string) (bool, error) {
	current, _, err := d.Read(folder, filename)
	if err != nil {
		return false, err
	}
	defer current.Close()

	blob, err := d.OpenVersionBlob(blobName)
	if err != nil {
		return false, err
	}
	defer blob.Close()

	bufA := make([]byte, compareBufBytes)
	bufB := make([]byte, compareBufBytes)
	for {
		nA, errA := io.ReadFull(current, bufA)
		nB, errB := io.ReadFull(blob, bufB)
		if nA != nB || !bytes.Equal(bufA[:nA], bufB[:nB]) {
			return false, nil
		}

		doneA := errA == io.EOF || errA == io.ErrUnexpectedEOF
		doneB := errB == io.EOF || errB == io.ErrUnexpectedEOF
		if doneA && doneB {
			return true, nil
		}
		if doneA != doneB {
			return false, nil
		}
		if errA != nil {
			return false, fmt.Errorf("failed to compare content: %w", errA)
		}
		if errB != nil {
			return false, fmt.Errorf("failed to compare content: %w", errB)
		}
	}
}

// copyFileAtomic копирует src в dst через временный файл и rename,
// чтобы dst не наблюдался в частично записанном состоянии.
func copyFileAtomic(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmpPath := filepath.Join(filepath.Dir(dst), tmpPrefix+uuid.NewString()[:8])
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(tmp, in)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}
	return n, nil
}

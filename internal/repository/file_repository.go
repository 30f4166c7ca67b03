package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"filedesk/internal/domain"
)

const uniqueViolation = "23505"

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *FileRepository) Create(ctx context.Context, rec *domain.FileRecord) error {
	query := `
        INSERT INTO file_records (filename, folder, owner_id, assigned_to_id, instruction, status, due_date, size)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		rec.Filename,
		rec.Folder,
		rec.OwnerID,
		rec.AssignedToID,
		rec.Instruction,
		rec.Status,
		rec.DueDate,
		rec.Size,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("%w: %s in %s", domain.ErrAlreadyExists, rec.Filename, rec.Folder)
		}
		return fmt.Errorf("failed to insert file record: %w", err)
	}
	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id int64) (*domain.FileRecord, error) {
	var rec domain.FileRecord
	query := `SELECT * FROM file_records WHERE id = $1`

	err := r.db.GetContext(ctx, &rec, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: file %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return &rec, nil
}

// GetByFolderAndName возвращает nil, nil если записи нет — вызывающий
// сам решает, конфликт это или нормальный случай.
func (r *FileRepository) GetByFolderAndName(ctx context.Context, folder, filename string) (*domain.FileRecord, error) {
	var rec domain.FileRecord
	query := `SELECT * FROM file_records WHERE folder = $1 AND filename = $2`

	err := r.db.GetContext(ctx, &rec, query, folder, filename)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check file existence: %w", err)
	}
	return &rec, nil
}

func (r *FileRepository) ListByFolder(ctx context.Context, folder string) ([]domain.FileRecord, error) {
	var recs []domain.FileRecord
	query := `SELECT * FROM file_records WHERE folder = $1 ORDER BY filename`

	if err := r.db.SelectContext(ctx, &recs, query, folder); err != nil {
		return nil, fmt.Errorf("failed to list folder records: %w", err)
	}
	return recs, nil
}

func (r *FileRepository) Update(ctx context.Context, rec *domain.FileRecord) error {
	query := `
        UPDATE file_records
        SET filename = $1,
            folder = $2,
            assigned_to_id = $3,
            instruction = $4,
            status = $5,
            due_date = $6,
            size = $7
        WHERE id = $8`

	res, err := r.db.ExecContext(ctx, query,
		rec.Filename, rec.Folder, rec.AssignedToID, rec.Instruction, rec.Status, rec.DueDate, rec.Size, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update file record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: file %d", domain.ErrNotFound, rec.ID)
	}
	return nil
}

func (r *FileRepository) UpdateSize(ctx context.Context, id, size int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE file_records SET size = $1 WHERE id = $2`, size, id)
	if err != nil {
		return fmt.Errorf("failed to update file size: %w", err)
	}
	return nil
}

func (r *FileRepository) UpdateSizeTx(ctx context.Context, tx *sqlx.Tx, id, size int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE file_records SET size = $1 WHERE id = $2`, size, id)
	if err != nil {
		return fmt.Errorf("failed to update file size: %w", err)
	}
	return nil
}

func (r *FileRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE file_records SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

func (r *FileRepository) UpdateInstruction(ctx context.Context, id int64, instruction string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE file_records SET instruction = $1 WHERE id = $2`, instruction, id)
	if err != nil {
		return fmt.Errorf("failed to update instruction: %w", err)
	}
	return nil
}

// UpdateAssignment назначает файл исполнителю и сбрасывает статус в Pending.
func (r *FileRepository) UpdateAssignment(ctx context.Context, id int64, assigneeID int64, instruction *string, dueDate *time.Time) error {
	query := `
        UPDATE file_records
        SET assigned_to_id = $1,
            instruction = COALESCE($2, instruction),
            due_date = COALESCE($3, due_date),
            status = $4
        WHERE id = $5`

	_, err := r.db.ExecContext(ctx, query, assigneeID, instruction, dueDate, domain.StatusPending, id)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	return nil
}

func (r *FileRepository) UpdateFolder(ctx context.Context, id int64, folder string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE file_records SET folder = $1 WHERE id = $2`, folder, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("%w: file already exists in destination", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to move file record: %w", err)
	}
	return nil
}

func (r *FileRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM file_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: file %d", domain.ErrNotFound, id)
	}
	return nil
}

func (r *FileRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	return nil
}

// RecordsUnderFolder возвращает записи в папке и всех её подпапках.
func (r *FileRepository) RecordsUnderFolder(ctx context.Context, folder string) ([]domain.FileRecord, error) {
	var recs []domain.FileRecord
	var err error
	if folder == "/" {
		err = r.db.SelectContext(ctx, &recs, `SELECT * FROM file_records`)
	} else {
		query := `SELECT * FROM file_records WHERE folder = $1 OR folder LIKE $2`
		err = r.db.SelectContext(ctx, &recs, query, folder, folder+"/%")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect folder records: %w", err)
	}
	return recs, nil
}

// DeleteUnderFolderTx удаляет записи папки рекурсивно; версии уходят
// каскадом по внешнему ключу.
func (r *FileRepository) DeleteUnderFolderTx(ctx context.Context, tx *sqlx.Tx, folder string) error {
	var err error
	if folder == "/" {
		_, err = tx.ExecContext(ctx, `DELETE FROM file_records`)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM file_records WHERE folder = $1 OR folder LIKE $2`, folder, folder+"/%")
	}
	if err != nil {
		return fmt.Errorf("failed to delete folder records: %w", err)
	}
	return nil
}

// Search выполняет расширенный поиск. Не-администратор видит только
// свои файлы и файлы, назначенные ему.
func (r *FileRepository) Search(ctx context.Context, f domain.SearchFilter, viewer *domain.User) ([]domain.FileRecord, error) {
	var (
		conds []string
		args  []interface{}
	)

	add := func(cond string, vals ...interface{}) {
		conds = append(conds, cond)
		args = append(args, vals...)
	}

	if viewer != nil && !viewer.IsAdmin {
		add("(owner_id = ? OR assigned_to_id = ?)", viewer.ID, viewer.ID)
	}
	if f.Query != "" {
		add("filename ILIKE ?", "%"+f.Query+"%")
	}
	if f.Folder != "" {
		add("folder = ?", f.Folder)
	}
	if f.FileType != "" {
		ext := strings.ToLower(f.FileType)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		add("filename ILIKE ?", "%"+ext)
	}
	if f.DateFrom != nil {
		add("created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("created_at <= ?", *f.DateTo)
	}
	if f.UploaderID != nil {
		add("owner_id = ?", *f.UploaderID)
	}
	if f.AssignedToID != nil {
		add("assigned_to_id = ?", *f.AssignedToID)
	}
	if f.Status != "" {
		add("status = ?", f.Status)
	}
	if f.HasDueDate != nil {
		if *f.HasDueDate {
			conds = append(conds, "due_date IS NOT NULL")
		} else {
			conds = append(conds, "due_date IS NULL")
		}
	}
	if f.OverdueOnly {
		add("due_date IS NOT NULL AND due_date < ? AND status <> ?", time.Now().UTC(), domain.StatusDone)
	}

	query := `SELECT * FROM file_records`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	// Вторичный ключ id делает пагинацию стабильной при равных датах.
	query += " ORDER BY created_at DESC, id DESC"

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Skip)

	query = r.db.Rebind(query)

	var recs []domain.FileRecord
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}
	return recs, nil
}

func (r *FileRepository) AssignedTo(ctx context.Context, userID int64) ([]domain.FileRecord, error) {
	var recs []domain.FileRecord
	query := `SELECT * FROM file_records WHERE assigned_to_id = $1 ORDER BY created_at DESC, id DESC`

	if err := r.db.SelectContext(ctx, &recs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list assigned files: %w", err)
	}
	return recs, nil
}

func (r *FileRepository) AllAssigned(ctx context.Context) ([]domain.FileRecord, error) {
	var recs []domain.FileRecord
	query := `SELECT * FROM file_records WHERE assigned_to_id IS NOT NULL ORDER BY created_at DESC, id DESC`

	if err := r.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("failed to list assigned files: %w", err)
	}
	return recs, nil
}

// Счётчики для метрик задач и панели администратора.

func (r *FileRepository) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM file_records`); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

func (r *FileRepository) CountAssigned(ctx context.Context) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM file_records WHERE assigned_to_id IS NOT NULL`
	if err := r.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("failed to count assigned files: %w", err)
	}
	return n, nil
}

func (r *FileRepository) CountAssignedWithStatus(ctx context.Context, status string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM file_records WHERE assigned_to_id IS NOT NULL AND status = $1`
	if err := r.db.GetContext(ctx, &n, query, status); err != nil {
		return 0, fmt.Errorf("failed to count files by status: %w", err)
	}
	return n, nil
}

func (r *FileRepository) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM file_records WHERE due_date IS NOT NULL AND due_date < $1 AND status <> $2`
	if err := r.db.GetContext(ctx, &n, query, now, domain.StatusDone); err != nil {
		return 0, fmt.Errorf("failed to count overdue files: %w", err)
	}
	return n, nil
}

func (r *FileRepository) CountUnderFolder(ctx context.Context, folder string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM file_records WHERE folder = $1 OR folder LIKE $2`
	if err := r.db.GetContext(ctx, &n, query, folder, folder+"/%"); err != nil {
		return 0, fmt.Errorf("failed to count folder files: %w", err)
	}
	return n, nil
}

func (r *FileRepository) AllFilenames(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.SelectContext(ctx, &names, `SELECT filename FROM file_records`); err != nil {
		return nil, fmt.Errorf("failed to list filenames: %w", err)
	}
	return names, nil
}

// Версии. Номер следующей версии выделяется под блокировкой строки
// файла, чтобы конкурентные перезаписи не получили одинаковый номер.

func (r *FileRepository) NextVersionNumber(ctx context.Context, tx *sqlx.Tx, fileID int64) (int, error) {
	var id int64
	if err := tx.GetContext(ctx, &id, `SELECT id FROM file_records WHERE id = $1 FOR UPDATE`, fileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: file %d", domain.ErrNotFound, fileID)
		}
		return 0, fmt.Errorf("failed to lock file record: %w", err)
	}

	var next int
	query := `SELECT COALESCE(MAX(version_number), 0) + 1 FROM file_versions WHERE file_id = $1`
	if err := tx.GetContext(ctx, &next, query, fileID); err != nil {
		return 0, fmt.Errorf("failed to allocate version number: %w", err)
	}
	return next, nil
}

func (r *FileRepository) CreateVersion(ctx context.Context, tx *sqlx.Tx, v *domain.FileVersion) error {
	query := `
        INSERT INTO file_versions (file_id, version_number, filename, blob_path, size, created_by_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at`

	err := tx.QueryRowContext(ctx, query,
		v.FileID, v.VersionNumber, v.Filename, v.BlobPath, v.Size, v.CreatedByID,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("%w: version %d of file %d", domain.ErrConflict, v.VersionNumber, v.FileID)
		}
		return fmt.Errorf("failed to insert file version: %w", err)
	}
	return nil
}

func (r *FileRepository) VersionsByFile(ctx context.Context, fileID int64) ([]domain.FileVersion, error) {
	var versions []domain.FileVersion
	query := `SELECT * FROM file_versions WHERE file_id = $1 ORDER BY version_number DESC`

	if err := r.db.SelectContext(ctx, &versions, query, fileID); err != nil {
		return nil, fmt.Errorf("failed to list file versions: %w", err)
	}
	return versions, nil
}

// GetVersion проверяет принадлежность версии файлу: чужой version_id
// даёт ErrNotFound, а не чужие данные.
func (r *FileRepository) GetVersion(ctx context.Context, fileID, versionID int64) (*domain.FileVersion, error) {
	var v domain.FileVersion
	query := `SELECT * FROM file_versions WHERE id = $1 AND file_id = $2`

	err := r.db.GetContext(ctx, &v, query, versionID, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: version %d of file %d", domain.ErrNotFound, versionID, fileID)
		}
		return nil, fmt.Errorf("failed to get file version: %w", err)
	}
	return &v, nil
}

func (r *FileRepository) CountVersions(ctx context.Context, fileID int64) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM file_versions WHERE file_id = $1`
	if err := r.db.GetContext(ctx, &n, query, fileID); err != nil {
		return 0, fmt.Errorf("failed to count versions: %w", err)
	}
	return n, nil
}

// BlobPathsForFiles собирает пути blob всех версий указанных файлов —
// для зачистки диска после каскадного удаления записей.
func (r *FileRepository) BlobPathsForFiles(ctx context.Context, fileIDs []int64) ([]string, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT blob_path FROM file_versions WHERE file_id IN (?)`, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build version blob query: %w", err)
	}
	query = r.db.Rebind(query)

	var paths []string
	if err := r.db.SelectContext(ctx, &paths, query, args...); err != nil {
		return nil, fmt.Errorf("failed to collect version blobs: %w", err)
	}
	return paths, nil
}

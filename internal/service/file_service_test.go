package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"filedesk/internal/domain"
	"filedesk/internal/repository"
	"filedesk/internal/storage"
	"filedesk/internal/testutils"
)

// testEnv поднимает полный набор сервисов над тестовой базой и
// временным хранилищем.
type testEnv struct {
	db            *sqlx.DB
	store         storage.Storage
	files         *FileService
	tasks         *TaskService
	batch         *BatchService
	users         *UserService
	notifications *NotificationService
	admin         *domain.User
	worker        *domain.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutils.SetupTestDB(t)
	logger := zap.NewNop()

	store, err := storage.NewDisk(t.TempDir(), t.TempDir(), logger)
	require.NoError(t, err)

	fileRepo := repository.NewFileRepository(db)
	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	preferencesRepo := repository.NewPreferencesRepository(db)

	activitySvc := NewActivityService(activityRepo, logger)
	notificationSvc := NewNotificationService(notificationRepo, logger)
	userSvc := NewUserService(userRepo, preferencesRepo, "0123456789abcdef0123456789abcdef", 30*time.Minute, logger)
	fileSvc := NewFileService(fileRepo, store, activitySvc, logger)
	taskSvc := NewTaskService(fileRepo, userRepo, activitySvc, notificationSvc, logger)
	batchSvc := NewBatchService(fileRepo, store, fileSvc, taskSvc, activitySvc, logger)

	ctx := context.Background()
	admin, err := userSvc.Register(ctx, "admin", "secret")
	require.NoError(t, err)
	require.True(t, admin.IsAdmin, "first registered user must be admin")

	worker, err := userSvc.Register(ctx, "worker", "secret")
	require.NoError(t, err)
	require.False(t, worker.IsAdmin)

	return &testEnv{
		db:            db,
		store:         store,
		files:         fileSvc,
		tasks:         taskSvc,
		batch:         batchSvc,
		users:         userSvc,
		notifications: notificationSvc,
		admin:         admin,
		worker:        worker,
	}
}

func (e *testEnv) upload(t *testing.T, folder, name, content string) *domain.FileRecord {
	t.Helper()

	rec, err := e.files.Upload(context.Background(), e.admin, folder, name, strings.NewReader(content), false)
	require.NoError(t, err)
	return rec
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.files.Upload(context.Background(), env.admin, "/", "shell.exe", strings.NewReader("x"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFileType))

	// Двойное расширение не спасает.
	_, err = env.files.Upload(context.Background(), env.admin, "/", "report.pdf.exe", strings.NewReader("x"), false)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFileType))
}

func TestUploadDuplicateWithoutOverwrite(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "/Reports", "q3.pdf", "v1")

	_, err := env.files.Upload(context.Background(), env.admin, "/Reports", "q3.pdf", strings.NewReader("v2"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
}

// TestOverwriteCreatesVersion: перезапись сохраняет прежнее содержимое
// версией, и версия скачивается независимо от текущего файла.
func TestOverwriteCreatesVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.upload(t, "/Reports", "q3.pdf", "original")

	updated, err := env.files.Upload(ctx, env.admin, "/Reports", "q3.pdf", strings.NewReader("rewritten"), true)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, updated.ID)
	assert.Equal(t, int64(len("rewritten")), updated.Size)

	versions, err := env.files.Versions(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, int64(len("original")), versions[0].Size)

	v, rc, err := env.files.DownloadVersion(ctx, rec.ID, versions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "q3.pdf", v.Filename)
	assert.Equal(t, "original", readAll(t, rc))

	_, rc2, _, err := env.files.Open(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", readAll(t, rc2))
}

func TestRestoreVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.upload(t, "/", "doc.pdf", "first")

	_, err := env.files.Upload(ctx, env.admin, "/", "doc.pdf", strings.NewReader("second"), true)
	require.NoError(t, err)

	versions, err := env.files.Versions(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)

	restored, err := env.files.Restore(ctx, env.admin, rec.ID, versions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len("first")), restored.Size)

	_, rc, _, err := env.files.Open(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", readAll(t, rc))

	// Восстановление сохранило "second" новой версией.
	versions, err = env.files.Versions(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	// Повторное восстановление той же версии — no-op: содержимое уже
	// совпадает, дубликат версии не создаётся.
	target := versions[1]
	if target.VersionNumber != 1 {
		target = versions[0]
	}
	_, err = env.files.Restore(ctx, env.admin, rec.ID, target.ID)
	require.NoError(t, err)

	versions, err = env.files.Versions(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestDeleteRequiresOwnerOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.upload(t, "/", "mine.pdf", "data")

	err := env.files.Delete(ctx, env.worker, rec.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	require.NoError(t, env.files.Delete(ctx, env.admin, rec.ID))

	_, err = env.files.Details(ctx, rec.ID, time.Now())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// TestListMergesDiskAndDatabase: каталоги синтезируются с
// отрицательными идентификаторами и не попадают в базу.
func TestListMergesDiskAndDatabase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, "/", "a.pdf", "data")
	require.NoError(t, env.files.CreateDirectory(ctx, env.admin, "/Operations"))

	entries, err := env.files.List(ctx, env.admin, "/", time.Now())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var dir, file *domain.FileListEntry
	for i := range entries {
		if entries[i].IsDir {
			dir = &entries[i]
		} else {
			file = &entries[i]
		}
	}
	require.NotNil(t, dir)
	require.NotNil(t, file)

	assert.Equal(t, "Operations", dir.Filename)
	assert.Negative(t, dir.ID)
	assert.Equal(t, "a.pdf", file.Filename)
	assert.Positive(t, file.ID)
}

func TestDeleteDirectoryFailSafe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, "/Operations", "keep.pdf", "data")

	err := env.files.DeleteDirectory(ctx, env.admin, "/Operations", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDirNotEmpty))

	// Рекурсивное удаление доступно только администратору.
	err = env.files.DeleteDirectory(ctx, env.worker, "/Operations", true)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	require.NoError(t, env.files.DeleteDirectory(ctx, env.admin, "/Operations", true))

	entries, err := env.files.List(ctx, env.admin, "/", time.Now())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAssignAndStatusFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.upload(t, "/", "task.pdf", "data")

	// Назначение — только администратор.
	_, err := env.tasks.Assign(ctx, env.worker, rec.ID, env.worker.ID, nil, nil)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	instruction := "review and sign"
	due := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	assigned, err := env.tasks.Assign(ctx, env.admin, rec.ID, env.worker.ID, &instruction, &due)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, assigned.Status)
	require.NotNil(t, assigned.AssignedToID)
	assert.Equal(t, env.worker.ID, *assigned.AssignedToID)

	// Исполнитель получил уведомление о назначении.
	notifications, err := env.notifications.ListForUser(ctx, env.worker.ID, true, 0, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, domain.NotificationTaskAssigned, notifications[0].Type)

	// Значение вне перечисления отклоняется.
	_, err = env.tasks.SetStatus(ctx, env.admin, rec.ID, "Broken")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	updated, err := env.tasks.SetStatus(ctx, env.worker, rec.ID, domain.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, updated.Status)
}

func TestTaskMetricsCompletionRate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Без назначений доля выполнения — ноль, не деление на ноль.
	m, err := env.tasks.Metrics(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, m.TotalAssigned)
	assert.Equal(t, 0.0, m.CompletionRate)

	names := []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"}
	for _, name := range names {
		rec := env.upload(t, "/", name, "data")
		_, err := env.tasks.Assign(ctx, env.admin, rec.ID, env.worker.ID, nil, nil)
		require.NoError(t, err)
		if name != "d.pdf" {
			_, err = env.tasks.SetStatus(ctx, env.worker, rec.ID, domain.StatusDone)
			require.NoError(t, err)
		}
	}

	m, err = env.tasks.Metrics(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, m.TotalAssigned)
	assert.Equal(t, 3, m.Completed)
	assert.Equal(t, 1, m.Pending)
	assert.InDelta(t, 75.0, m.CompletionRate, 0.001)
}

func TestBatchDeletePartialSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.upload(t, "/", "a.pdf", "data")
	b := env.upload(t, "/", "b.pdf", "data")

	result, err := env.batch.Delete(ctx, env.admin, []int64{a.ID, 999999, b.ID})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{a.ID, b.ID}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, int64(999999), result.Failed[0].ID)
}

func TestSyncRegistersDiskFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, "/", "known.pdf", "data")

	// Файл, появившийся на диске мимо API.
	_, err := env.store.Write("/Imports", "stray.pdf", strings.NewReader("data"), false)
	require.NoError(t, err)

	registered, err := env.files.Sync(ctx, env.admin)
	require.NoError(t, err)
	assert.Equal(t, 1, registered)

	// Запись создана со служебным статусом и владельцем-вызывающим.
	entries, err := env.files.List(ctx, env.admin, "/Imports", time.Now())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stray.pdf", entries[0].Filename)
	assert.Equal(t, domain.StatusSynced, entries[0].Status)
	assert.Equal(t, env.admin.ID, entries[0].OwnerID)

	// Повторный запуск ничего не добавляет.
	registered, err = env.files.Sync(ctx, env.admin)
	require.NoError(t, err)
	assert.Equal(t, 0, registered)
}

// TestConcurrentOverwritesSequentialVersions: две одновременные
// перезаписи одного файла дают ровно два последовательных номера
// версии, оба прежних содержимых сохраняются в истории.
func TestConcurrentOverwritesSequentialVersions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.upload(t, "/Reports", "contended.pdf", "base")

	payloads := []string{"alpha", "bravo"}
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, len(payloads))

	for i, payload := range payloads {
		wg.Add(1)
		go func(i int, payload string) {
			defer wg.Done()
			<-start
			_, errs[i] = env.files.Upload(ctx, env.admin, "/Reports", "contended.pdf",
				strings.NewReader(payload), true)
		}(i, payload)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	versions, err := env.files.Versions(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.ElementsMatch(t, []int{1, 2},
		[]int{versions[0].VersionNumber, versions[1].VersionNumber})

	contents := make(map[int]string, len(versions))
	for _, v := range versions {
		_, rc, err := env.files.DownloadVersion(ctx, rec.ID, v.ID)
		require.NoError(t, err)
		contents[v.VersionNumber] = readAll(t, rc)
	}
	assert.Equal(t, "base", contents[1])

	_, rc, _, err := env.files.Open(ctx, rec.ID)
	require.NoError(t, err)
	current := readAll(t, rc)

	// Вторая версия хранит содержимое первой перезаписи, текущий файл —
	// второй; порядок между alpha и bravo не детерминирован.
	assert.ElementsMatch(t, payloads, []string{contents[2], current})
}

// TestOverwriteRevertsOnDatabaseFailure: если база отклонила фиксацию
// перезаписи уже после замены файла, на диск возвращается прежнее
// содержимое и версий-сирот не остаётся.
func TestOverwriteRevertsOnDatabaseFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const poisonSize = 31337

	_, err := env.db.Exec(`
        CREATE OR REPLACE FUNCTION reject_poison_size() RETURNS trigger AS $$
        BEGIN
            IF NEW.size = 31337 THEN
                RAISE EXCEPTION 'poison size';
            END IF;
            RETURN NEW;
        END;
        $$ LANGUAGE plpgsql`)
	require.NoError(t, err)
	_, err = env.db.Exec(`
        CREATE TRIGGER reject_poison_size BEFORE UPDATE OF size ON file_records
        FOR EACH ROW EXECUTE FUNCTION reject_poison_size()`)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = env.db.Exec(`DROP TRIGGER IF EXISTS reject_poison_size ON file_records`)
		_, _ = env.db.Exec(`DROP FUNCTION IF EXISTS reject_poison_size()`)
	})

	rec := env.upload(t, "/Reports", "audit.pdf", "original")

	_, err = env.files.Upload(ctx, env.admin, "/Reports", "audit.pdf",
		strings.NewReader(strings.Repeat("x", poisonSize)), true)
	require.Error(t, err)

	_, rc, _, err := env.files.Open(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", readAll(t, rc))

	versions, err := env.files.Versions(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"filedesk/internal/domain"
)

func newTestDisk(t *testing.T) *Disk {
	t.Helper()

	d, err := NewDisk(t.TempDir(), t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return d
}

func TestDiskWriteRead(t *testing.T) {
	d := newTestDisk(t)

	content := "quarterly numbers"
	n, err := d.Write("/Reports", "q3.pdf", strings.NewReader(content), false)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)

	rc, size, err := d.Read("/Reports", "q3.pdf")
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, int64(len(content)), size)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestDiskWriteOverwriteFlag(t *testing.T) {
	d := newTestDisk(t)

	_, err := d.Write("/", "a.pdf", strings.NewReader("v1"), false)
	require.NoError(t, err)

	// Без флага перезаписи повторная запись отклоняется.
	_, err = d.Write("/", "a.pdf", strings.NewReader("v2"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	// С флагом содержимое заменяется.
	_, err = d.Write("/", "a.pdf", strings.NewReader("v2"), true)
	require.NoError(t, err)

	rc, _, err := d.Read("/", "a.pdf")
	require.NoError(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "v2", string(got))
}

func TestDiskWriteSizeLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large write in short mode")
	}
	d := newTestDisk(t)

	over := io.LimitReader(zeroReader{}, MaxUploadSize+1)
	_, err := d.Write("/", "huge.pdf", over, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPayloadTooLarge))

	// Из-за отказа файл не должен появиться, и временных файлов тоже.
	_, _, err = d.Read("/", "huge.pdf")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	entries, err := d.List("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestDiskReadMissing(t *testing.T) {
	d := newTestDisk(t)

	_, _, err := d.Read("/", "ghost.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDiskMove(t *testing.T) {
	d := newTestDisk(t)

	_, err := d.Write("/Src", "doc.pdf", strings.NewReader("data"), false)
	require.NoError(t, err)

	require.NoError(t, d.Move("/Src", "doc.pdf", "/Dst"))

	_, _, err = d.Read("/Src", "doc.pdf")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	rc, _, err := d.Read("/Dst", "doc.pdf")
	require.NoError(t, err)
	rc.Close()
}

func TestDiskDirectoryLifecycle(t *testing.T) {
	d := newTestDisk(t)

	require.NoError(t, d.CreateDir("/Operations"))
	assert.True(t, d.DirExists("/Operations"))

	// Повторное создание — конфликт.
	err := d.CreateDir("/Operations")
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	// Непустой каталог без recursive не удаляется.
	_, err = d.Write("/Operations", "keep.pdf", strings.NewReader("x"), false)
	require.NoError(t, err)

	err = d.DeleteDir("/Operations", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDirNotEmpty))
	assert.True(t, d.DirExists("/Operations"))

	// С recursive уходит вместе с содержимым.
	require.NoError(t, d.DeleteDir("/Operations", true))
	assert.False(t, d.DirExists("/Operations"))
}

func TestDiskDeleteDirRefusesRoot(t *testing.T) {
	d := newTestDisk(t)

	err := d.DeleteDir("/", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

// TestDiskRejectsSymlinkEscape: операции хранилища не следуют за
// симлинком, ведущим за пределы корня.
func TestDiskRejectsSymlinkEscape(t *testing.T) {
	d := newTestDisk(t)

	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.pdf")
	require.NoError(t, os.WriteFile(secret, []byte("outside-root"), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(d.Root(), "link")))

	_, _, err := d.Read("/link", "secret.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))

	_, err = d.Write("/link", "planted.pdf", strings.NewReader("x"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))

	// Симлинк на месте самого файла тоже отсекается.
	require.NoError(t, os.Symlink(secret, filepath.Join(d.Root(), "alias.pdf")))
	_, _, err = d.Read("/", "alias.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))
}

func TestDiskListSkipsTempFiles(t *testing.T) {
	d := newTestDisk(t)

	_, err := d.Write("/", "visible.pdf", strings.NewReader("x"), false)
	require.NoError(t, err)

	// Имитация брошенного временного файла.
	tmp := filepath.Join(d.Root(), tmpPrefix+"abc123")
	require.NoError(t, os.WriteFile(tmp, []byte("partial"), 0o644))

	entries, err := d.List("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "visible.pdf", entries[0].Name)
}

func TestDiskVersionRoundTrip(t *testing.T) {
	d := newTestDisk(t)

	_, err := d.Write("/", "doc.pdf", strings.NewReader("original"), false)
	require.NoError(t, err)

	blob := VersionBlobName(7, 1, "doc.pdf")
	size, err := d.SnapshotVersion("/", "doc.pdf", blob)
	require.NoError(t, err)
	assert.Equal(t, int64(len("original")), size)

	// Снимок совпадает с текущим содержимым.
	same, err := d.SameContent("/", "doc.pdf", blob)
	require.NoError(t, err)
	assert.True(t, same)

	// После перезаписи содержимое расходится.
	_, err = d.Write("/", "doc.pdf", strings.NewReader("changed"), true)
	require.NoError(t, err)

	same, err = d.SameContent("/", "doc.pdf", blob)
	require.NoError(t, err)
	assert.False(t, same)

	// Восстановление возвращает исходные байты.
	restored, err := d.RestoreVersion(blob, "/", "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(len("original")), restored)

	rc, _, err := d.Read("/", "doc.pdf")
	require.NoError(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "original", string(got))

	// Blob не виден в листинге папок.
	entries, err := d.List("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.pdf", entries[0].Name)

	require.NoError(t, d.DeleteVersionBlob(blob))
	_, err = d.OpenVersionBlob(blob)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDiskWalkFiles(t *testing.T) {
	d := newTestDisk(t)

	_, err := d.Write("/", "root.pdf", strings.NewReader("a"), false)
	require.NoError(t, err)
	_, err = d.Write("/Operations/Reports", "deep.pdf", strings.NewReader("bb"), false)
	require.NoError(t, err)

	found := map[string]int64{}
	err = d.WalkFiles(func(folder, name string, size int64, _ time.Time) error {
		found[folder+"/"+name] = size
		return nil
	})
	require.NoError(t, err)

	require.Len(t, found, 2)
	assert.Equal(t, int64(1), found["//root.pdf"])
	assert.Equal(t, int64(2), found["/Operations/Reports/deep.pdf"])
}

func TestVersionBlobName(t *testing.T) {
	name := VersionBlobName(42, 3, "doc.pdf")
	assert.True(t, strings.HasPrefix(name, "42_3_"))
	assert.True(t, strings.HasSuffix(name, "_doc.pdf"))

	// Одинаковые аргументы дают разные имена: uuid защищает от коллизий.
	assert.NotEqual(t, name, VersionBlobName(42, 3, "doc.pdf"))
}

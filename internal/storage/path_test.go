package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedesk/internal/domain"
)

// TestAllowedExtension проверяет белый список расширений, включая
// двойные расширения и регистр.
func TestAllowedExtension(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		allowed  bool
	}{
		{"pdf", "report.pdf", true},
		{"docx", "letter.docx", true},
		{"xlsx", "budget.xlsx", true},
		{"pptx", "slides.pptx", true},
		{"uppercase pdf", "REPORT.PDF", true},
		{"mixed case", "Report.PdF", true},
		{"exe", "virus.exe", false},
		{"double extension masks exe", "report.pdf.exe", false},
		{"allowed after disallowed", "report.exe.pdf", true},
		{"no extension", "README", false},
		{"only dot", "file.", false},
		{"doc is not docx", "old.doc", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, AllowedExtension(tt.filename))
		})
	}
}

func TestNormalizeFolder(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty is root", "", "/"},
		{"root", "/", "/"},
		{"plain", "Operations", "/Operations"},
		{"leading slash kept", "/Operations", "/Operations"},
		{"trailing slash stripped", "/Operations/", "/Operations"},
		{"nested", "Operations/Reports", "/Operations/Reports"},
		{"backslashes", "Operations\\Reports", "/Operations/Reports"},
		{"dot segments collapse", "/Operations/./Reports", "/Operations/Reports"},
		{"parent collapses inside", "/Operations/Sub/../Reports", "/Operations/Reports"},
		{"parent cannot escape", "/../..", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFolder(tt.in))
		})
	}
}

// TestResolve — главный инвариант: результат всегда остаётся внутри
// корня, любые попытки выхода дают ErrPathTraversal.
func TestResolve(t *testing.T) {
	root := t.TempDir()

	valid := []struct {
		name string
		path string
	}{
		{"root itself", "/"},
		{"empty", ""},
		{"simple folder", "/Operations"},
		{"nested folder", "/Operations/Reports"},
		{"relative form", "Operations/Reports"},
		{"dot segment", "/Operations/./Reports"},
	}
	for _, tt := range valid {
		t.Run("valid "+tt.name, func(t *testing.T) {
			got, err := Resolve(root, tt.path)
			require.NoError(t, err)

			abs, err := filepath.Abs(root)
			require.NoError(t, err)
			if got != abs {
				assert.True(t, strings.HasPrefix(got, abs+string(filepath.Separator)),
					"resolved path %q escapes root %q", got, abs)
			}
		})
	}

	// Любой сегмент ".." — отказ, даже когда Clean схлопнул бы его
	// внутрь корня. Маскировка обхода под безобидный путь запрещена.
	invalid := []struct {
		name string
		path string
	}{
		{"null byte", "/Operations/\x00evil"},
		{"encoded traversal", "/Operation/../../etc/passwd"},
		{"inner parent segment", "/Operations/Sub/../Reports"},
		{"bare parent", ".."},
		{"leading parent", "../evil"},
		{"backslash parent", "..\\..\\etc"},
	}
	for _, tt := range invalid {
		t.Run("invalid "+tt.name, func(t *testing.T) {
			_, err := Resolve(root, tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrPathTraversal))
		})
	}
}

// TestResolveRejectsSymlinkEscape: симлинк внутри корня, ведущий
// наружу, не должен открывать доступ к чужим путям.
func TestResolveRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	_, err := Resolve(root, "/link")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))

	_, err = Resolve(root, "/link/secret.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))
}

func TestValidFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{"plain", "report.pdf", false},
		{"spaces", "annual report.pdf", false},
		{"unicode", "отчёт.pdf", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"forward slash", "a/b.pdf", true},
		{"backslash", "a\\b.pdf", true},
		{"null byte", "a\x00b.pdf", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidFilename(tt.filename)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrPathTraversal))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

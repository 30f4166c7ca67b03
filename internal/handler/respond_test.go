package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"filedesk/internal/domain"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"already exists", domain.ErrAlreadyExists, http.StatusConflict},
		{"conflict", domain.ErrConflict, http.StatusConflict},
		{"dir not empty", domain.ErrDirNotEmpty, http.StatusConflict},
		{"payload too large", domain.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{"unsupported type", domain.ErrUnsupportedFileType, http.StatusUnprocessableEntity},
		{"invalid status", domain.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{"path traversal", domain.ErrPathTraversal, http.StatusBadRequest},
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"unknown error", fmt.Errorf("disk exploded"), http.StatusInternalServerError},
		{"wrapped sentinel", fmt.Errorf("context: %w", domain.ErrNotFound), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, zap.NewNop(), tt.err)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

// Внутренние ошибки не раскрываются клиенту.
func TestWriteErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, zap.NewNop(), fmt.Errorf("pq: relation does not exist"))

	assert.NotContains(t, rec.Body.String(), "relation")
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestSplitFilePath(t *testing.T) {
	tests := []struct {
		in       string
		folder   string
		filename string
	}{
		{"/Reports/q3.pdf", "/Reports", "q3.pdf"},
		{"/a/b/c.pdf", "/a/b", "c.pdf"},
		{"/top.pdf", "/", "top.pdf"},
		{"top.pdf", "/", "top.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			folder, filename := splitFilePath(tt.in)
			assert.Equal(t, tt.folder, folder)
			assert.Equal(t, tt.filename, filename)
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2026-03-01")
	assert.NoError(t, err)
	assert.Equal(t, 2026, d.Year())

	d, err = parseDate("2026-03-01T10:30:00Z")
	assert.NoError(t, err)
	assert.Equal(t, 10, d.Hour())

	_, err = parseDate("March 1st")
	assert.Error(t, err)
}

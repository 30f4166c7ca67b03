package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"filedesk/internal/storage"
)

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// TestUploadOversizePayloadStatus: тело сверх лимита должно давать
// 413, а не ошибку разбора формы.
func TestUploadOversizePayloadStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("streams a payload above the upload limit")
	}

	h := NewFileHandler(nil, nil, nil, zap.NewNop())

	const boundary = "filedesk-upload-test"
	prologue := "--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"big.pdf\"\r\n" +
		"Content-Type: application/octet-stream\r\n\r\n"
	epilogue := "\r\n--" + boundary + "--\r\n"

	body := io.MultiReader(
		strings.NewReader(prologue),
		io.LimitReader(zeroReader{}, storage.MaxUploadSize+2<<20),
		strings.NewReader(epilogue),
	)

	req := httptest.NewRequest(http.MethodPost, "/v1/files/upload", body)
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

// domain/file_version.go
package domain

import (
	"time"
)

// FileVersion — сохранённое прежнее содержимое файла. Создаётся
// автоматически при перезаписи и при восстановлении. Записи версий
// неизменяемы; blob лежит в отдельной области версий, недоступной
// по пути папки.
type FileVersion struct {
	ID            int64     `json:"id" db:"id"`
	FileID        int64     `json:"file_id" db:"file_id"`
	VersionNumber int       `json:"version_number" db:"version_number"`
	Filename      string    `json:"filename" db:"filename"`
	BlobPath      string    `json:"-" db:"blob_path"`
	Size          int64     `json:"size" db:"size"`
	CreatedByID   *int64    `json:"created_by_id,omitempty" db:"created_by_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

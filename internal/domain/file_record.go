package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Статусы задач по файлам. "Synced" — служебный статус для файлов,
// найденных на диске и зарегистрированных автоматически, задачей не является.
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
	StatusSynced     = "Synced"
)

// ValidTaskStatus проверяет, что статус входит в перечисление задач.
func ValidTaskStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// FileRecord представляет запись о файле в базе данных.
// Физическое содержимое лежит на диске по пути Folder/Filename
// относительно корня хранилища.
type FileRecord struct {
	ID           int64      `json:"id" db:"id"`
	Filename     string     `json:"filename" db:"filename"`
	Folder       string     `json:"folder" db:"folder"`
	OwnerID      int64      `json:"owner_id" db:"owner_id"`
	AssignedToID *int64     `json:"assigned_to_id,omitempty" db:"assigned_to_id"`
	Instruction  *string    `json:"instruction,omitempty" db:"instruction"`
	Status       string     `json:"status" db:"status"`
	DueDate      *time.Time `json:"due_date,omitempty" db:"due_date"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	Size         int64      `json:"size" db:"size"`
	IsDir        bool       `json:"is_dir" db:"-"`
}

// Overdue — вычисляемое свойство, никогда не хранится в базе.
func (f *FileRecord) Overdue(now time.Time) bool {
	return f.DueDate != nil && f.DueDate.Before(now) && f.Status != StatusDone
}

// Ext возвращает расширение файла в нижнем регистре, включая точку.
func (f *FileRecord) Ext() string {
	return strings.ToLower(filepath.Ext(f.Filename))
}

// FileListEntry — элемент листинга: запись из базы либо синтезированная
// запись для каталога или неиндексированного файла.
type FileListEntry struct {
	FileRecord
	Overdue bool `json:"overdue"`
}

// SearchFilter описывает составной фильтр расширенного поиска.
// Все поля необязательны и комбинируются через AND.
type SearchFilter struct {
	Query        string
	Folder       string
	FileType     string
	DateFrom     *time.Time
	DateTo       *time.Time
	UploaderID   *int64
	AssignedToID *int64
	Status       string
	HasDueDate   *bool
	OverdueOnly  bool
	Skip         int
	Limit        int
}

// TaskMetrics — агрегированные показатели по назначенным файлам
// для панели администратора.
type TaskMetrics struct {
	TotalAssigned  int     `json:"total_assigned"`
	Completed      int     `json:"completed"`
	Pending        int     `json:"pending"`
	Overdue        int     `json:"overdue"`
	CompletionRate float64 `json:"completion_rate"`
}

package domain

import "time"

// Действия, фиксируемые в журнале активности.
const (
	ActionUpload          = "UPLOAD"
	ActionOverwrite       = "OVERWRITE"
	ActionDownload        = "DOWNLOAD"
	ActionDelete          = "DELETE"
	ActionBulkDelete      = "BULK_DELETE"
	ActionBulkAssign      = "BULK_ASSIGN"
	ActionBulkMove        = "BULK_MOVE"
	ActionCreateDirectory = "CREATE_DIRECTORY"
	ActionDeleteDirectory = "DELETE_DIRECTORY"
	ActionUpdate          = "UPDATE"
	ActionUpdateStatus    = "UPDATE_STATUS"
	ActionAssign          = "ASSIGN"
	ActionRestoreVersion  = "RESTORE_VERSION"
	ActionSync            = "SYNC"
)

// ActivityLog — запись журнала. Журнал только дописывается,
// обычные операции его не изменяют и не удаляют.
type ActivityLog struct {
	ID        int64     `json:"id" db:"id"`
	UserID    *int64    `json:"user_id,omitempty" db:"user_id"`
	Username  *string   `json:"username,omitempty" db:"username"`
	Action    string    `json:"action" db:"action"`
	Details   string    `json:"details" db:"details"`
	CreatedAt time.Time `json:"timestamp" db:"created_at"`
}

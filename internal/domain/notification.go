package domain

import "time"

// Единственный тип уведомлений: движок назначений уведомляет
// исполнителя, срочность доставляется флагом is_urgent.
const NotificationTaskAssigned = "task_assigned"

// Notification — внутреннее уведомление пользователя. Создаётся
// движком назначений, мутируется только флагом is_read, удаляется
// по явному действию пользователя.
type Notification struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	Title         string    `json:"title" db:"title"`
	Message       string    `json:"message" db:"message"`
	Type          string    `json:"type" db:"type"`
	IsRead        bool      `json:"is_read" db:"is_read"`
	IsUrgent      bool      `json:"is_urgent" db:"is_urgent"`
	RelatedFileID *int64    `json:"related_file_id,omitempty" db:"related_file_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

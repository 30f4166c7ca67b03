package domain

// User — пользователь системы. Первый зарегистрированный пользователь
// становится администратором (проверка атомарна, см. UserRepository).
type User struct {
	ID             int64  `json:"id" db:"id"`
	Username       string `json:"username" db:"username"`
	HashedPassword string `json:"-" db:"hashed_password"`
	IsAdmin        bool   `json:"is_admin" db:"is_admin"`
}

// UserPreferences — настройки отображения для фронтенда.
type UserPreferences struct {
	ID             int64  `json:"id" db:"id"`
	UserID         int64  `json:"user_id" db:"user_id"`
	ViewMode       string `json:"view_mode" db:"view_mode"`
	VisibleColumns string `json:"visible_columns" db:"visible_columns"`
	SortKey        string `json:"sort_key" db:"sort_key"`
	SortDirection  string `json:"sort_direction" db:"sort_direction"`
	Theme          string `json:"theme" db:"theme"`
}

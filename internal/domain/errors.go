package domain

import "errors"

// Общая таксономия ошибок. Сервисы оборачивают их через fmt.Errorf
// с %w, хендлеры сопоставляют errors.Is со статусами HTTP.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrPathTraversal       = errors.New("path escapes storage root")
	ErrAlreadyExists       = errors.New("already exists")
	ErrNotFound            = errors.New("not found")
	ErrPayloadTooLarge     = errors.New("payload too large")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidTransition   = errors.New("invalid status value")
	ErrDirNotEmpty         = errors.New("directory not empty")
	ErrConflict            = errors.New("conflicting concurrent operation")
)

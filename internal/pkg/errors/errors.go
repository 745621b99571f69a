package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (неверный токен, нет прав).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния
	// (например, попытка встать в очередь, уже находясь в активном матче).
	ErrConflict = errors.New("resource state conflict")

	// ErrUnavailable используется, когда общее хранилище недоступно
	// и операция не может быть выполнена даже через локальный fallback.
	ErrUnavailable = errors.New("shared store unavailable")
)

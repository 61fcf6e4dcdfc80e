package domain

import "errors"

// Сентинельные ошибки уровня домена, проверяются через errors.Is
var (
	ErrNotFound         = errors.New("resource not found")
	ErrForbidden        = errors.New("access denied")
	ErrConflict         = errors.New("resource already exists")
	ErrStoreUnavailable = errors.New("storage unavailable")
	ErrValidation       = errors.New("validation failed")
)

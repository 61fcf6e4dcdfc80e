package domain

import (
	"time"

	"github.com/google/uuid"
)

type ResourceType string

const (
	ResourceTypeFile   ResourceType = "file"
	ResourceTypeFolder ResourceType = "folder"
)

// Action определяет проверяемую операцию над ресурсом
type Action string

const (
	ActionRead     Action = "read"
	ActionDownload Action = "download"
)

const RoleSuperAdmin = "super_admin"

// Permission — материализованная строка прав. Для выданного на папку права
// строки поддерживаются и для всех потомков (см. PermissionService).
type Permission struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	UserID       string       `json:"user_id" db:"user_id"`
	ResourceID   string       `json:"resource_id" db:"resource_id"`
	ResourceType ResourceType `json:"resource_type" db:"resource_type"`
	CanRead      bool         `json:"can_read" db:"can_read"`
	CanDownload  bool         `json:"can_download" db:"can_download"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// Allows проверяет, покрывает ли строка запрошенную операцию
func (p *Permission) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return p.CanRead
	case ActionDownload:
		return p.CanDownload
	default:
		return false
	}
}

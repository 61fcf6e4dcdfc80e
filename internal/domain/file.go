package domain

import (
	"time"

	"github.com/google/uuid"
)

// StorageBackend определяет, в каком хранилище лежат данные файла.
// Бэкенд хранится явным полем, а не выводится из формы ключа.
type StorageBackend string

const (
	BackendLocal StorageBackend = "local"
	BackendS3    StorageBackend = "s3"
)

type File struct {
	UUID           uuid.UUID      `json:"uuid" db:"uuid"`
	Name           string         `json:"name" db:"name"`
	OriginalName   string         `json:"original_name" db:"original_name"`
	FolderID       *int64         `json:"folder_id,omitempty" db:"folder_id"`
	StorageKey     string         `json:"storage_key" db:"storage_key"`
	StorageBackend StorageBackend `json:"storage_backend" db:"storage_backend"`
	MIMEType       string         `json:"mime_type" db:"mime_type"`
	SizeBytes      int64          `json:"size_bytes" db:"size_bytes"`
	CreatedBy      string         `json:"created_by" db:"created_by"`
	IsDeleted      bool           `json:"is_deleted" db:"is_deleted"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`

	Favourited bool `json:"favourited" db:"favourited"`
}

// FileUpload описывает один файл в батче загрузки
type FileUpload struct {
	Name         string
	RelativePath string // путь от клиента при загрузке папки, может быть пустым
	MIMEType     string
	Size         int64
	Data         []byte
}

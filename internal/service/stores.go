package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fmdrive/internal/domain"
)

// Интерфейсы хранилищ, которые потребляют сервисы. Реализуются
// sqlx-репозиториями из internal/repository и in-memory фейками в тестах.

type FolderStore interface {
	Create(ctx context.Context, folder *domain.Folder) error
	GetByID(ctx context.Context, id int64) (*domain.Folder, error)
	FindActiveByNameAndParent(ctx context.Context, name string, parentID *int64, createdBy string) (*domain.Folder, error)
	ListByOwner(ctx context.Context, userID string) ([]domain.Folder, error)
	ListPermitted(ctx context.Context, userID string) ([]domain.Folder, error)
	GetChildren(ctx context.Context, parentID int64) ([]domain.Folder, error)
	GetActiveChildren(ctx context.Context, parentID int64) ([]domain.Folder, error)
	GetDeletedChildren(ctx context.Context, parentID int64) ([]domain.Folder, error)
	MarkDeleted(ctx context.Context, id int64, at time.Time) error
	MarkRestored(ctx context.Context, id int64) error
	UpdateName(ctx context.Context, id int64, name string) error
	UpdateParent(ctx context.Context, id int64, parentID *int64) error
	ActiveNameExists(ctx context.Context, parentID *int64, name string, excludeID int64) (bool, error)
	ListTrash(ctx context.Context, userID string, parentID *int64) ([]domain.Folder, error)
	ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]domain.Folder, error)
	DeleteRow(ctx context.Context, id int64) error
}

type FileStore interface {
	CreateBatch(ctx context.Context, files []*domain.File) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*domain.File, error)
	ListActiveByFolder(ctx context.Context, folderID *int64, userID string) ([]domain.File, error)
	ListPermitted(ctx context.Context, userID string, folderID *int64) ([]domain.File, error)
	ListAllByFolder(ctx context.Context, folderID int64) ([]domain.File, error)
	ListDeletedByFolder(ctx context.Context, folderID int64) ([]domain.File, error)
	NameExists(ctx context.Context, name string, folderID *int64, createdBy string) (bool, error)
	MarkDeletedByFolder(ctx context.Context, folderID int64, at time.Time) error
	RestoreByFolder(ctx context.Context, folderID int64) error
	MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkRestored(ctx context.Context, id uuid.UUID) error
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	Relocate(ctx context.Context, id uuid.UUID, folderID *int64, name, storageKey string) error
	ListTrash(ctx context.Context, userID string, folderID *int64) ([]domain.File, error)
	ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]domain.File, error)
	DeleteRow(ctx context.Context, id uuid.UUID) error
}

type PermissionStore interface {
	Get(ctx context.Context, userID, resourceID string, resourceType domain.ResourceType) (*domain.Permission, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Permission, error)
	Upsert(ctx context.Context, perm *domain.Permission) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteForUserResource(ctx context.Context, userID, resourceID string, resourceType domain.ResourceType) error
	DeleteByResource(ctx context.Context, resourceID string, resourceType domain.ResourceType) error
	ListByResource(ctx context.Context, resourceID string, resourceType domain.ResourceType) ([]domain.Permission, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Permission, error)
}

type FavouriteStore interface {
	ToggleFolder(ctx context.Context, userID string, folderID int64) (bool, error)
	ToggleFile(ctx context.Context, userID string, fileUUID uuid.UUID) (bool, error)
	ListFolders(ctx context.Context, userID string) ([]domain.Folder, error)
	ListFiles(ctx context.Context, userID string) ([]domain.File, error)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"fmdrive/internal/domain"
)

type FolderRepository struct {
	db *sqlx.DB
}

func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(ctx context.Context, folder *domain.Folder) error {
	query := `
        INSERT INTO folders (name, parent_id, created_by)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		folder.Name,
		folder.ParentID,
		folder.CreatedBy,
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	return nil
}

// GetByID возвращает папку независимо от флага удаления.
// Решение о доступности удалённой папки принимает сервисный слой.
func (r *FolderRepository) GetByID(ctx context.Context, id int64) (*domain.Folder, error) {
	query := `
        SELECT id, name, parent_id, created_by, is_deleted, deleted_at, created_at, updated_at
        FROM folders
        WHERE id = $1`

	var folder domain.Folder
	err := r.db.GetContext(ctx, &folder, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return &folder, nil
}

// FindActiveByNameAndParent ищет неудалённую папку по ключу (имя, родитель, владелец).
// Используется при идемпотентном создании цепочки папок.
func (r *FolderRepository) FindActiveByNameAndParent(ctx context.Context, name string, parentID *int64, createdBy string) (*domain.Folder, error) {
	query := `
        SELECT id, name, parent_id, created_by, is_deleted, deleted_at, created_at, updated_at
        FROM folders
        WHERE name = $1
          AND parent_id IS NOT DISTINCT FROM $2
          AND created_by = $3
          AND is_deleted = false
        ORDER BY id
        LIMIT 1`

	var folder domain.Folder
	err := r.db.GetContext(ctx, &folder, query, name, parentID, createdBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("folder %q under %v: %w", name, parentID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find folder by name: %w", err)
	}

	return &folder, nil
}

// ListByOwner возвращает неудалённые папки пользователя с флагом избранного
func (r *FolderRepository) ListByOwner(ctx context.Context, userID string) ([]domain.Folder, error) {
	query := `
        SELECT
            f.id, f.name, f.parent_id, f.created_by, f.is_deleted, f.deleted_at,
            f.created_at, f.updated_at,
            (uff.folder_id IS NOT NULL) AS favourited
        FROM folders f
        LEFT JOIN user_favourite_folders uff
            ON uff.folder_id = f.id AND uff.user_id = $1
        WHERE f.created_by = $1 AND f.is_deleted = false
        ORDER BY f.created_at DESC`

	var folders []domain.Folder
	if err := r.db.SelectContext(ctx, &folders, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	return folders, nil
}

// ListPermitted возвращает чужие папки, на которые пользователю
// выдано материализованное право чтения
func (r *FolderRepository) ListPermitted(ctx context.Context, userID string) ([]domain.Folder, error) {
	query := `
        SELECT
            f.id, f.name, f.parent_id, f.created_by, f.is_deleted, f.deleted_at,
            f.created_at, f.updated_at,
            false AS favourited
        FROM folders f
        JOIN permissions p
            ON p.resource_id = f.id::text
           AND p.resource_type = 'folder'
        WHERE p.user_id = $1
          AND p.can_read = true
          AND f.is_deleted = false
        ORDER BY f.created_at DESC`

	var folders []domain.Folder
	if err := r.db.SelectContext(ctx, &folders, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list permitted folders: %w", err)
	}

	return folders, nil
}

// GetChildren возвращает всех прямых потомков, включая удалённых.
// Распространение прав обходит поддерево целиком.
func (r *FolderRepository) GetChildren(ctx context.Context, parentID int64) ([]domain.Folder, error) {
	return r.childrenWhere(ctx, parentID, "")
}

func (r *FolderRepository) GetActiveChildren(ctx context.Context, parentID int64) ([]domain.Folder, error) {
	return r.childrenWhere(ctx, parentID, "AND is_deleted = false")
}

func (r *FolderRepository) GetDeletedChildren(ctx context.Context, parentID int64) ([]domain.Folder, error) {
	return r.childrenWhere(ctx, parentID, "AND is_deleted = true")
}

func (r *FolderRepository) childrenWhere(ctx context.Context, parentID int64, cond string) ([]domain.Folder, error) {
	query := fmt.Sprintf(`
        SELECT id, name, parent_id, created_by, is_deleted, deleted_at, created_at, updated_at
        FROM folders
        WHERE parent_id = $1 %s
        ORDER BY id`, cond)

	var folders []domain.Folder
	if err := r.db.SelectContext(ctx, &folders, query, parentID); err != nil {
		return nil, fmt.Errorf("failed to get child folders: %w", err)
	}

	return folders, nil
}

func (r *FolderRepository) MarkDeleted(ctx context.Context, id int64, at time.Time) error {
	query := `
        UPDATE folders
        SET is_deleted = true, deleted_at = $2, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark folder as deleted: %w", err)
	}

	return nil
}

func (r *FolderRepository) MarkRestored(ctx context.Context, id int64) error {
	query := `
        UPDATE folders
        SET is_deleted = false, deleted_at = NULL, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to restore folder: %w", err)
	}

	return nil
}

func (r *FolderRepository) UpdateName(ctx context.Context, id int64, name string) error {
	query := `
        UPDATE folders
        SET name = $2, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, name)
	if err != nil {
		return fmt.Errorf("failed to update folder name: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

func (r *FolderRepository) UpdateParent(ctx context.Context, id int64, parentID *int64) error {
	query := `
        UPDATE folders
        SET parent_id = $2, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, parentID)
	if err != nil {
		return fmt.Errorf("failed to update folder parent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ActiveNameExists проверяет существование неудалённой папки с таким
// именем на том же уровне
func (r *FolderRepository) ActiveNameExists(ctx context.Context, parentID *int64, name string, excludeID int64) (bool, error) {
	query := `
        SELECT EXISTS(
            SELECT 1 FROM folders
            WHERE parent_id IS NOT DISTINCT FROM $1
              AND name = $2
              AND id != $3
              AND is_deleted = false
        )`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, parentID, name, excludeID); err != nil {
		return false, fmt.Errorf("failed to check folder existence: %w", err)
	}

	return exists, nil
}

// ListTrash возвращает содержимое корзины. Без parentID отдаются только
// корневые элементы корзины: удалённые папки, чей родитель не удалён.
func (r *FolderRepository) ListTrash(ctx context.Context, userID string, parentID *int64) ([]domain.Folder, error) {
	var query string
	var args []interface{}

	if parentID == nil {
		query = `
            SELECT f.id, f.name, f.parent_id, f.created_by, f.is_deleted, f.deleted_at,
                   f.created_at, f.updated_at
            FROM folders f
            WHERE f.created_by = $1
              AND f.is_deleted = true
              AND (
                  f.parent_id IS NULL
                  OR NOT EXISTS (
                      SELECT 1 FROM folders parent
                      WHERE parent.id = f.parent_id AND parent.is_deleted = true
                  )
              )
            ORDER BY f.created_at DESC`
		args = []interface{}{userID}
	} else {
		query = `
            SELECT id, name, parent_id, created_by, is_deleted, deleted_at, created_at, updated_at
            FROM folders
            WHERE created_by = $1 AND parent_id = $2 AND is_deleted = true
            ORDER BY created_at DESC`
		args = []interface{}{userID, *parentID}
	}

	var folders []domain.Folder
	if err := r.db.SelectContext(ctx, &folders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list trash folders: %w", err)
	}

	return folders, nil
}

// ListDeletedBefore возвращает папки, удалённые раньше заданного момента
func (r *FolderRepository) ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]domain.Folder, error) {
	query := `
        SELECT id, name, parent_id, created_by, is_deleted, deleted_at, created_at, updated_at
        FROM folders
        WHERE is_deleted = true AND deleted_at IS NOT NULL AND deleted_at < $1
        ORDER BY id`

	var folders []domain.Folder
	if err := r.db.SelectContext(ctx, &folders, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list expired folders: %w", err)
	}

	return folders, nil
}

func (r *FolderRepository) DeleteRow(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete folder row: %w", err)
	}

	return nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fmdrive/internal/domain"
)

type FavouriteRepository struct {
	db *sqlx.DB
}

func NewFavouriteRepository(db *sqlx.DB) *FavouriteRepository {
	return &FavouriteRepository{db: db}
}

// ToggleFolder переключает отметку избранного и возвращает новое состояние
func (r *FavouriteRepository) ToggleFolder(ctx context.Context, userID string, folderID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
        SELECT EXISTS(
            SELECT 1 FROM user_favourite_folders
            WHERE user_id = $1 AND folder_id = $2
        )`, userID, folderID)
	if err != nil {
		return false, fmt.Errorf("failed to check favourite: %w", err)
	}

	if exists {
		_, err = r.db.ExecContext(ctx, `
            DELETE FROM user_favourite_folders
            WHERE user_id = $1 AND folder_id = $2`, userID, folderID)
		if err != nil {
			return false, fmt.Errorf("failed to remove favourite: %w", err)
		}
		return false, nil
	}

	_, err = r.db.ExecContext(ctx, `
        INSERT INTO user_favourite_folders (user_id, folder_id)
        VALUES ($1, $2)
        ON CONFLICT (user_id, folder_id) DO NOTHING`, userID, folderID)
	if err != nil {
		return false, fmt.Errorf("failed to add favourite: %w", err)
	}

	return true, nil
}

func (r *FavouriteRepository) ToggleFile(ctx context.Context, userID string, fileUUID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
        SELECT EXISTS(
            SELECT 1 FROM user_favourite_files
            WHERE user_id = $1 AND file_uuid = $2
        )`, userID, fileUUID)
	if err != nil {
		return false, fmt.Errorf("failed to check favourite: %w", err)
	}

	if exists {
		_, err = r.db.ExecContext(ctx, `
            DELETE FROM user_favourite_files
            WHERE user_id = $1 AND file_uuid = $2`, userID, fileUUID)
		if err != nil {
			return false, fmt.Errorf("failed to remove favourite: %w", err)
		}
		return false, nil
	}

	_, err = r.db.ExecContext(ctx, `
        INSERT INTO user_favourite_files (user_id, file_uuid)
        VALUES ($1, $2)
        ON CONFLICT (user_id, file_uuid) DO NOTHING`, userID, fileUUID)
	if err != nil {
		return false, fmt.Errorf("failed to add favourite: %w", err)
	}

	return true, nil
}

// ListFolders возвращает избранные папки пользователя, без удалённых
func (r *FavouriteRepository) ListFolders(ctx context.Context, userID string) ([]domain.Folder, error) {
	query := `
        SELECT f.id, f.name, f.parent_id, f.created_by, f.is_deleted, f.deleted_at,
               f.created_at, f.updated_at, true AS favourited
        FROM folders f
        JOIN user_favourite_folders uff ON uff.folder_id = f.id
        WHERE uff.user_id = $1 AND f.is_deleted = false
        ORDER BY uff.created_at DESC`

	var folders []domain.Folder
	if err := r.db.SelectContext(ctx, &folders, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list favourite folders: %w", err)
	}

	return folders, nil
}

func (r *FavouriteRepository) ListFiles(ctx context.Context, userID string) ([]domain.File, error) {
	query := `
        SELECT f.uuid, f.name, f.original_name, f.folder_id, f.storage_key,
               f.storage_backend, f.mime_type, f.size_bytes, f.created_by,
               f.is_deleted, f.deleted_at, f.created_at, f.updated_at,
               true AS favourited
        FROM files f
        JOIN user_favourite_files uf ON uf.file_uuid = f.uuid
        WHERE uf.user_id = $1 AND f.is_deleted = false
        ORDER BY uf.created_at DESC`

	var files []domain.File
	if err := r.db.SelectContext(ctx, &files, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list favourite files: %w", err)
	}

	return files, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fmdrive/internal/domain"
)

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

const insertFileQuery = `
    INSERT INTO files (uuid, name, original_name, folder_id, storage_key,
                       storage_backend, mime_type, size_bytes, created_by)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    RETURNING created_at, updated_at`

// CreateBatch вставляет метаданные батча загрузки в одной транзакции.
// Блобы в транзакцию не входят: при ошибке коммита вызывающая сторона
// обязана удалить уже записанные блобы.
func (r *FileRepository) CreateBatch(ctx context.Context, files []*domain.File) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, file := range files {
		err := tx.QueryRowContext(
			ctx,
			insertFileQuery,
			file.UUID,
			file.Name,
			file.OriginalName,
			file.FolderID,
			file.StorageKey,
			file.StorageBackend,
			file.MIMEType,
			file.SizeBytes,
			file.CreatedBy,
		).Scan(&file.CreatedAt, &file.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert file %s: %w", file.Name, err)
		}
	}

	return tx.Commit()
}

func (r *FileRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	query := `
        SELECT uuid, name, original_name, folder_id, storage_key, storage_backend,
               mime_type, size_bytes, created_by, is_deleted, deleted_at,
               created_at, updated_at
        FROM files
        WHERE uuid = $1`

	var file domain.File
	err := r.db.GetContext(ctx, &file, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return &file, nil
}

// ListActiveByFolder возвращает неудалённые файлы владельца в папке
// с флагом избранного. parentID = nil означает корень.
func (r *FileRepository) ListActiveByFolder(ctx context.Context, folderID *int64, userID string) ([]domain.File, error) {
	query := `
        SELECT
            f.uuid, f.name, f.original_name, f.folder_id, f.storage_key,
            f.storage_backend, f.mime_type, f.size_bytes, f.created_by,
            f.is_deleted, f.deleted_at, f.created_at, f.updated_at,
            (uf.file_uuid IS NOT NULL) AS favourited
        FROM files f
        LEFT JOIN user_favourite_files uf
            ON uf.file_uuid = f.uuid AND uf.user_id = $2
        WHERE f.folder_id IS NOT DISTINCT FROM $1
          AND f.created_by = $2
          AND f.is_deleted = false
        ORDER BY f.created_at DESC`

	var files []domain.File
	if err := r.db.SelectContext(ctx, &files, query, folderID, userID); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

// ListPermitted возвращает чужие файлы, доступные пользователю по
// материализованному праву чтения
func (r *FileRepository) ListPermitted(ctx context.Context, userID string, folderID *int64) ([]domain.File, error) {
	query := `
        SELECT
            f.uuid, f.name, f.original_name, f.folder_id, f.storage_key,
            f.storage_backend, f.mime_type, f.size_bytes, f.created_by,
            f.is_deleted, f.deleted_at, f.created_at, f.updated_at,
            false AS favourited
        FROM files f
        JOIN permissions p
            ON p.resource_id = f.uuid::text
           AND p.resource_type = 'file'
        WHERE p.user_id = $1
          AND p.can_read = true
          AND f.is_deleted = false
          AND ($2::bigint IS NULL OR f.folder_id = $2)
        ORDER BY f.created_at DESC`

	var files []domain.File
	if err := r.db.SelectContext(ctx, &files, query, userID, folderID); err != nil {
		return nil, fmt.Errorf("failed to list permitted files: %w", err)
	}

	return files, nil
}

// ListAllByFolder возвращает все файлы папки, включая удалённые.
// Используется при распространении и отзыве прав.
func (r *FileRepository) ListAllByFolder(ctx context.Context, folderID int64) ([]domain.File, error) {
	query := `
        SELECT uuid, name, original_name, folder_id, storage_key, storage_backend,
               mime_type, size_bytes, created_by, is_deleted, deleted_at,
               created_at, updated_at
        FROM files
        WHERE folder_id = $1
        ORDER BY uuid`

	var files []domain.File
	if err := r.db.SelectContext(ctx, &files, query, folderID); err != nil {
		return nil, fmt.Errorf("failed to list folder files: %w", err)
	}

	return files, nil
}

func (r *FileRepository) ListDeletedByFolder(ctx context.Context, folderID int64) ([]domain.File, error) {
	query := `
        SELECT uuid, name, original_name, folder_id, storage_key, storage_backend,
               mime_type, size_bytes, created_by, is_deleted, deleted_at,
               created_at, updated_at
        FROM files
        WHERE folder_id = $1 AND is_deleted = true
        ORDER BY uuid`

	var files []domain.File
	if err := r.db.SelectContext(ctx, &files, query, folderID); err != nil {
		return nil, fmt.Errorf("failed to list deleted files: %w", err)
	}

	return files, nil
}

// NameExists проверяет занятость имени среди неудалённых файлов папки
func (r *FileRepository) NameExists(ctx context.Context, name string, folderID *int64, createdBy string) (bool, error) {
	query := `
        SELECT EXISTS(
            SELECT 1 FROM files
            WHERE name = $1
              AND folder_id IS NOT DISTINCT FROM $2
              AND created_by = $3
              AND is_deleted = false
        )`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, folderID, createdBy); err != nil {
		return false, fmt.Errorf("failed to check file name: %w", err)
	}

	return exists, nil
}

func (r *FileRepository) MarkDeletedByFolder(ctx context.Context, folderID int64, at time.Time) error {
	query := `
        UPDATE files
        SET is_deleted = true, deleted_at = $2, updated_at = CURRENT_TIMESTAMP
        WHERE folder_id = $1 AND is_deleted = false`

	if _, err := r.db.ExecContext(ctx, query, folderID, at); err != nil {
		return fmt.Errorf("failed to mark folder files as deleted: %w", err)
	}

	return nil
}

func (r *FileRepository) RestoreByFolder(ctx context.Context, folderID int64) error {
	query := `
        UPDATE files
        SET is_deleted = false, deleted_at = NULL, updated_at = CURRENT_TIMESTAMP
        WHERE folder_id = $1 AND is_deleted = true`

	if _, err := r.db.ExecContext(ctx, query, folderID); err != nil {
		return fmt.Errorf("failed to restore folder files: %w", err)
	}

	return nil
}

func (r *FileRepository) MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
        UPDATE files
        SET is_deleted = true, deleted_at = $2, updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1`

	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark file as deleted: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

func (r *FileRepository) MarkRestored(ctx context.Context, id uuid.UUID) error {
	query := `
        UPDATE files
        SET is_deleted = false, deleted_at = NULL, updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to restore file: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

func (r *FileRepository) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	query := `
        UPDATE files
        SET name = $2, updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1`

	result, err := r.db.ExecContext(ctx, query, id, name)
	if err != nil {
		return fmt.Errorf("failed to update file name: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Relocate перемещает файл в другую папку с новым именем и ключом блоба
func (r *FileRepository) Relocate(ctx context.Context, id uuid.UUID, folderID *int64, name, storageKey string) error {
	query := `
        UPDATE files
        SET folder_id = $2, name = $3, storage_key = $4, updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1`

	result, err := r.db.ExecContext(ctx, query, id, folderID, name, storageKey)
	if err != nil {
		return fmt.Errorf("failed to relocate file: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ListTrash возвращает удалённые файлы пользователя. Без folderID
// отдаются только файлы, чья папка не удалена (корень корзины).
func (r *FileRepository) ListTrash(ctx context.Context, userID string, folderID *int64) ([]domain.File, error) {
	var query string
	var args []interface{}

	if folderID == nil {
		query = `
            SELECT f.uuid, f.name, f.original_name, f.folder_id, f.storage_key,
                   f.storage_backend, f.mime_type, f.size_bytes, f.created_by,
                   f.is_deleted, f.deleted_at, f.created_at, f.updated_at
            FROM files f
            WHERE f.created_by = $1
              AND f.is_deleted = true
              AND (
                  f.folder_id IS NULL
                  OR NOT EXISTS (
                      SELECT 1 FROM folders parent
                      WHERE parent.id = f.folder_id AND parent.is_deleted = true
                  )
              )
            ORDER BY f.created_at DESC`
		args = []interface{}{userID}
	} else {
		query = `
            SELECT uuid, name, original_name, folder_id, storage_key, storage_backend,
                   mime_type, size_bytes, created_by, is_deleted, deleted_at,
                   created_at, updated_at
            FROM files
            WHERE created_by = $1 AND folder_id = $2 AND is_deleted = true
            ORDER BY created_at DESC`
		args = []interface{}{userID, *folderID}
	}

	var files []domain.File
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list trash files: %w", err)
	}

	return files, nil
}

func (r *FileRepository) ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]domain.File, error) {
	query := `
        SELECT uuid, name, original_name, folder_id, storage_key, storage_backend,
               mime_type, size_bytes, created_by, is_deleted, deleted_at,
               created_at, updated_at
        FROM files
        WHERE is_deleted = true AND deleted_at IS NOT NULL AND deleted_at < $1
        ORDER BY uuid`

	var files []domain.File
	if err := r.db.SelectContext(ctx, &files, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list expired files: %w", err)
	}

	return files, nil
}

func (r *FileRepository) DeleteRow(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE uuid = $1`, id); err != nil {
		return fmt.Errorf("failed to delete file row: %w", err)
	}

	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fmdrive/internal/domain"
)

type PermissionRepository struct {
	db *sqlx.DB
}

func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) Get(ctx context.Context, userID, resourceID string, resourceType domain.ResourceType) (*domain.Permission, error) {
	query := `
        SELECT id, user_id, resource_id, resource_type, can_read, can_download,
               created_at, updated_at
        FROM permissions
        WHERE user_id = $1 AND resource_id = $2 AND resource_type = $3`

	var perm domain.Permission
	err := r.db.GetContext(ctx, &perm, query, userID, resourceID, resourceType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("permission for %s on %s %s: %w",
				userID, resourceType, resourceID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}

	return &perm, nil
}

func (r *PermissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Permission, error) {
	query := `
        SELECT id, user_id, resource_id, resource_type, can_read, can_download,
               created_at, updated_at
        FROM permissions
        WHERE id = $1`

	var perm domain.Permission
	err := r.db.GetContext(ctx, &perm, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("permission %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}

	return &perm, nil
}

// Upsert вставляет строку прав или обновляет флаги существующей.
// Уникальность по (user_id, resource_id, resource_type) обеспечивает схема.
func (r *PermissionRepository) Upsert(ctx context.Context, perm *domain.Permission) error {
	if perm.ID == uuid.Nil {
		perm.ID = uuid.New()
	}

	query := `
        INSERT INTO permissions (id, user_id, resource_id, resource_type, can_read, can_download)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (user_id, resource_id, resource_type)
        DO UPDATE SET can_read = EXCLUDED.can_read,
                      can_download = EXCLUDED.can_download,
                      updated_at = CURRENT_TIMESTAMP
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		perm.ID,
		perm.UserID,
		perm.ResourceID,
		perm.ResourceType,
		perm.CanRead,
		perm.CanDownload,
	).Scan(&perm.ID, &perm.CreatedAt, &perm.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert permission: %w", err)
	}

	return nil
}

func (r *PermissionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM permissions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}

	return nil
}

func (r *PermissionRepository) DeleteForUserResource(ctx context.Context, userID, resourceID string, resourceType domain.ResourceType) error {
	query := `
        DELETE FROM permissions
        WHERE user_id = $1 AND resource_id = $2 AND resource_type = $3`

	if _, err := r.db.ExecContext(ctx, query, userID, resourceID, resourceType); err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}

	return nil
}

// DeleteByResource удаляет строки прав всех пользователей на ресурс.
// Вызывается при окончательном удалении ресурса.
func (r *PermissionRepository) DeleteByResource(ctx context.Context, resourceID string, resourceType domain.ResourceType) error {
	query := `DELETE FROM permissions WHERE resource_id = $1 AND resource_type = $2`

	if _, err := r.db.ExecContext(ctx, query, resourceID, resourceType); err != nil {
		return fmt.Errorf("failed to delete resource permissions: %w", err)
	}

	return nil
}

func (r *PermissionRepository) ListByResource(ctx context.Context, resourceID string, resourceType domain.ResourceType) ([]domain.Permission, error) {
	query := `
        SELECT id, user_id, resource_id, resource_type, can_read, can_download,
               created_at, updated_at
        FROM permissions
        WHERE resource_id = $1 AND resource_type = $2
        ORDER BY created_at`

	var perms []domain.Permission
	if err := r.db.SelectContext(ctx, &perms, query, resourceID, resourceType); err != nil {
		return nil, fmt.Errorf("failed to list resource permissions: %w", err)
	}

	return perms, nil
}

func (r *PermissionRepository) ListByUser(ctx context.Context, userID string) ([]domain.Permission, error) {
	query := `
        SELECT id, user_id, resource_id, resource_type, can_read, can_download,
               created_at, updated_at
        FROM permissions
        WHERE user_id = $1
        ORDER BY created_at`

	var perms []domain.Permission
	if err := r.db.SelectContext(ctx, &perms, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user permissions: %w", err)
	}

	return perms, nil
}

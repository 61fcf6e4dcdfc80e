package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"

	"fmdrive/internal/domain"
)

// PermissionService управляет материализованными правами доступа.
// Право, выданное на папку, распространяется строками на всех её
// потомков, включая удалённые: восстановленный из корзины потомок
// сразу доступен получателю.
type PermissionService struct {
	perms   PermissionStore
	folders FolderStore
	files   FileStore
}

func NewPermissionService(perms PermissionStore, folders FolderStore, files FileStore) *PermissionService {
	return &PermissionService{
		perms:   perms,
		folders: folders,
		files:   files,
	}
}

// AssignRequest описывает выдачу или изменение права
type AssignRequest struct {
	UserID       string              `json:"user_id" validate:"required"`
	ResourceID   string              `json:"resource_id" validate:"required"`
	ResourceType domain.ResourceType `json:"resource_type" validate:"required,oneof=file folder"`
	CanRead      bool                `json:"can_read"`
	CanDownload  bool                `json:"can_download"`
}

// Assign выдает или обновляет право на ресурс. Разрешено супер-админу
// и создателю ресурса. Для папки право материализуется по всему
// поддереву: существующие строки потомков обновляются всегда, в том
// числе до (false, false); новые строки создаются только при хотя бы
// одном выставленном флаге.
func (s *PermissionService) Assign(ctx context.Context, actorID, actorRole string, req AssignRequest) (*domain.Permission, error) {
	creator, err := s.resourceCreator(ctx, req.ResourceID, req.ResourceType)
	if err != nil {
		return nil, err
	}

	if actorRole != domain.RoleSuperAdmin && (creator == nil || *creator != actorID) {
		return nil, fmt.Errorf("user %s cannot manage permissions of %s %s: %w",
			actorID, req.ResourceType, req.ResourceID, domain.ErrForbidden)
	}

	perm := &domain.Permission{
		UserID:       req.UserID,
		ResourceID:   req.ResourceID,
		ResourceType: req.ResourceType,
		CanRead:      req.CanRead,
		CanDownload:  req.CanDownload,
	}

	if err := s.perms.Upsert(ctx, perm); err != nil {
		return nil, fmt.Errorf("failed to upsert permission: %w", err)
	}

	if req.ResourceType == domain.ResourceTypeFolder {
		folderID, err := strconv.ParseInt(req.ResourceID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid folder id %q: %w", req.ResourceID, domain.ErrValidation)
		}

		if err := s.propagate(ctx, folderID, req); err != nil {
			return nil, err
		}
	}

	log.Printf("[AssignPermission] Granted %s on %s %s to user %s (read=%t download=%t)",
		actorID, req.ResourceType, req.ResourceID, req.UserID, req.CanRead, req.CanDownload)

	return perm, nil
}

// propagate материализует право по поддереву папки явным обходом.
// Удалённые узлы не пропускаются.
func (s *PermissionService) propagate(ctx context.Context, rootID int64, req AssignRequest) error {
	stack := []int64{rootID}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		files, err := s.files.ListAllByFolder(ctx, current)
		if err != nil {
			return fmt.Errorf("failed to list files of folder %d: %w", current, err)
		}
		for _, file := range files {
			if err := s.applyDescendant(ctx, req, file.UUID.String(), domain.ResourceTypeFile); err != nil {
				return err
			}
		}

		children, err := s.folders.GetChildren(ctx, current)
		if err != nil {
			return fmt.Errorf("failed to list children of folder %d: %w", current, err)
		}
		for _, child := range children {
			if err := s.applyDescendant(ctx, req, strconv.FormatInt(child.ID, 10), domain.ResourceTypeFolder); err != nil {
				return err
			}
			stack = append(stack, child.ID)
		}
	}

	return nil
}

func (s *PermissionService) applyDescendant(ctx context.Context, req AssignRequest, resourceID string, resourceType domain.ResourceType) error {
	existing, err := s.perms.Get(ctx, req.UserID, resourceID, resourceType)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to get permission of %s %s: %w", resourceType, resourceID, err)
	}

	// Новая строка не создаётся, если оба флага сняты
	if existing == nil && !req.CanRead && !req.CanDownload {
		return nil
	}

	perm := &domain.Permission{
		UserID:       req.UserID,
		ResourceID:   resourceID,
		ResourceType: resourceType,
		CanRead:      req.CanRead,
		CanDownload:  req.CanDownload,
	}
	if existing != nil {
		perm.ID = existing.ID
	}

	if err := s.perms.Upsert(ctx, perm); err != nil {
		return fmt.Errorf("failed to upsert permission of %s %s: %w", resourceType, resourceID, err)
	}

	return nil
}

// Remove отзывает право по идентификатору строки. Для права на папку
// каскадно удаляются строки того же пользователя по всему поддереву.
func (s *PermissionService) Remove(ctx context.Context, actorID, actorRole string, permissionID uuid.UUID) error {
	perm, err := s.perms.GetByID(ctx, permissionID)
	if err != nil {
		return err
	}

	creator, err := s.resourceCreator(ctx, perm.ResourceID, perm.ResourceType)
	if err != nil {
		return err
	}

	if actorRole != domain.RoleSuperAdmin && (creator == nil || *creator != actorID) {
		return fmt.Errorf("user %s cannot manage permissions of %s %s: %w",
			actorID, perm.ResourceType, perm.ResourceID, domain.ErrForbidden)
	}

	if perm.ResourceType == domain.ResourceTypeFolder {
		folderID, err := strconv.ParseInt(perm.ResourceID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid folder id %q: %w", perm.ResourceID, domain.ErrValidation)
		}

		if err := s.removeSubtree(ctx, folderID, perm.UserID); err != nil {
			return err
		}
	}

	if err := s.perms.Delete(ctx, permissionID); err != nil {
		return fmt.Errorf("failed to delete permission %s: %w", permissionID, err)
	}

	log.Printf("[RemovePermission] Revoked %s on %s %s from user %s",
		actorID, perm.ResourceType, perm.ResourceID, perm.UserID)

	return nil
}

func (s *PermissionService) removeSubtree(ctx context.Context, rootID int64, userID string) error {
	stack := []int64{rootID}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		files, err := s.files.ListAllByFolder(ctx, current)
		if err != nil {
			return fmt.Errorf("failed to list files of folder %d: %w", current, err)
		}
		for _, file := range files {
			if err := s.perms.DeleteForUserResource(ctx, userID, file.UUID.String(), domain.ResourceTypeFile); err != nil {
				return fmt.Errorf("failed to delete permission of file %s: %w", file.UUID, err)
			}
		}

		children, err := s.folders.GetChildren(ctx, current)
		if err != nil {
			return fmt.Errorf("failed to list children of folder %d: %w", current, err)
		}
		for _, child := range children {
			if err := s.perms.DeleteForUserResource(ctx, userID, strconv.FormatInt(child.ID, 10), domain.ResourceTypeFolder); err != nil {
				return fmt.Errorf("failed to delete permission of folder %d: %w", child.ID, err)
			}
			stack = append(stack, child.ID)
		}
	}

	return nil
}

// CheckAccess решает, допустим ли доступ: супер-админ и создатель
// ресурса могут всё, остальным нужен соответствующий флаг в строке права
func (s *PermissionService) CheckAccess(ctx context.Context, userID, role, resourceID string, resourceType domain.ResourceType, action domain.Action) (bool, error) {
	if role == domain.RoleSuperAdmin {
		return true, nil
	}

	creator, err := s.resourceCreator(ctx, resourceID, resourceType)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if creator != nil && *creator == userID {
		return true, nil
	}

	perm, err := s.perms.Get(ctx, userID, resourceID, resourceType)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return perm.Allows(action), nil
}

func (s *PermissionService) ListByResource(ctx context.Context, resourceID string, resourceType domain.ResourceType) ([]domain.Permission, error) {
	return s.perms.ListByResource(ctx, resourceID, resourceType)
}

func (s *PermissionService) ListByUser(ctx context.Context, userID string) ([]domain.Permission, error) {
	return s.perms.ListByUser(ctx, userID)
}

func (s *PermissionService) resourceCreator(ctx context.Context, resourceID string, resourceType domain.ResourceType) (*string, error) {
	switch resourceType {
	case domain.ResourceTypeFolder:
		id, err := strconv.ParseInt(resourceID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid folder id %q: %w", resourceID, domain.ErrValidation)
		}
		folder, err := s.folders.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return folder.CreatedBy, nil

	case domain.ResourceTypeFile:
		id, err := uuid.Parse(resourceID)
		if err != nil {
			return nil, fmt.Errorf("invalid file id %q: %w", resourceID, domain.ErrValidation)
		}
		file, err := s.files.GetByUUID(ctx, id)
		if err != nil {
			return nil, err
		}
		createdBy := file.CreatedBy
		return &createdBy, nil

	default:
		return nil, fmt.Errorf("unknown resource type %q: %w", resourceType, domain.ErrValidation)
	}
}

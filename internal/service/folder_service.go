package service

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"fmdrive/internal/domain"
	"fmdrive/internal/storage"
)

// FolderService реализует операции над деревом ресурсов: создание и
// навигация, мягкое удаление, восстановление и окончательная очистка.
// Каскады выполняются явным обходом по запросу смежности
// (parent_id = X), без рекурсии по указателям.
type FolderService struct {
	folders FolderStore
	files   FileStore
	perms   PermissionStore
	blobs   storage.Storage
}

func NewFolderService(
	folders FolderStore,
	files FileStore,
	perms PermissionStore,
	blobs storage.Storage,
) *FolderService {
	return &FolderService{
		folders: folders,
		files:   files,
		perms:   perms,
		blobs:   blobs,
	}
}

// CreateFolder создает папку. Уникальность имени среди соседей здесь
// не проверяется: дубликаты разрешены, пока вызывающий сам не
// попросил разрешение имени.
func (s *FolderService) CreateFolder(ctx context.Context, name string, parentID *int64, ownerID string) (*domain.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("folder name is required: %w", domain.ErrValidation)
	}

	if parentID != nil {
		parent, err := s.folders.GetByID(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get parent folder: %w", err)
		}
		if parent.IsDeleted {
			return nil, fmt.Errorf("parent folder %d is deleted: %w", *parentID, domain.ErrNotFound)
		}
	}

	folder := &domain.Folder{
		Name:      name,
		ParentID:  parentID,
		CreatedBy: &ownerID,
	}

	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	return folder, nil
}

// EnsureFolderPath идемпотентно материализует цепочку папок под parentID.
// На каждом уровне переиспользуется существующая неудалённая папка с
// совпадающим ключом (имя, родитель, владелец), остальные создаются.
func (s *FolderService) EnsureFolderPath(ctx context.Context, segments []string, parentID *int64, ownerID string) (*int64, error) {
	current := parentID

	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" || segment == "." {
			continue
		}

		folder, err := s.folders.FindActiveByNameAndParent(ctx, segment, current, ownerID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("failed to look up path segment %q: %w", segment, err)
			}

			folder = &domain.Folder{
				Name:      segment,
				ParentID:  current,
				CreatedBy: &ownerID,
			}
			if err := s.folders.Create(ctx, folder); err != nil {
				return nil, fmt.Errorf("failed to create path segment %q: %w", segment, err)
			}
			log.Printf("[EnsureFolderPath] Created folder %q (id=%d)", segment, folder.ID)
		}

		id := folder.ID
		current = &id
	}

	return current, nil
}

func (s *FolderService) GetFolder(ctx context.Context, id int64) (*domain.Folder, error) {
	folder, err := s.folders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if folder.IsDeleted {
		return nil, fmt.Errorf("folder %d is deleted: %w", id, domain.ErrNotFound)
	}

	return folder, nil
}

// ListFolders возвращает папки пользователя вместе с чужими папками,
// доступными по материализованному праву чтения. Папка, чей родитель
// пользователю недоступен, всплывает в выдаче верхнего уровня.
func (s *FolderService) ListFolders(ctx context.Context, userID string, parentID *int64) ([]domain.Folder, error) {
	own, err := s.folders.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list own folders: %w", err)
	}

	permitted, err := s.folders.ListPermitted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permitted folders: %w", err)
	}

	seen := make(map[int64]bool, len(own))
	result := make([]domain.Folder, 0, len(own)+len(permitted))

	for _, f := range own {
		if parentID != nil && (f.ParentID == nil || *f.ParentID != *parentID) {
			continue
		}
		seen[f.ID] = true
		result = append(result, f)
	}

	for _, f := range permitted {
		if seen[f.ID] {
			continue
		}
		if parentID != nil && (f.ParentID == nil || *f.ParentID != *parentID) {
			continue
		}
		result = append(result, f)
	}

	return result, nil
}

func (s *FolderService) GetFolderContent(ctx context.Context, folderID int64, userID string) (*domain.FolderContent, error) {
	folder, err := s.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}

	subfolders, err := s.ListFolders(ctx, userID, &folderID)
	if err != nil {
		return nil, err
	}

	files, err := s.files.ListActiveByFolder(ctx, &folderID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder files: %w", err)
	}

	permittedFiles, err := s.files.ListPermitted(ctx, userID, &folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permitted files: %w", err)
	}

	have := make(map[string]bool, len(files))
	for _, f := range files {
		have[f.UUID.String()] = true
	}
	for _, f := range permittedFiles {
		if !have[f.UUID.String()] {
			files = append(files, f)
		}
	}

	return &domain.FolderContent{
		Folder:  *folder,
		Files:   files,
		Folders: subfolders,
	}, nil
}

// GetFolderTree строит лес папок пользователя за два прохода по
// плоскому списку. Узел, чей родитель отсутствует в наборе
// пользователя, поднимается в корни.
func (s *FolderService) GetFolderTree(ctx context.Context, userID string) ([]*domain.FolderNode, error) {
	folders, err := s.folders.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	nodes := make(map[int64]*domain.FolderNode, len(folders))
	for _, f := range folders {
		nodes[f.ID] = &domain.FolderNode{
			ID:            f.ID,
			Name:          f.Name,
			ParentID:      f.ParentID,
			NestedFolders: []*domain.FolderNode{},
		}
	}

	roots := make([]*domain.FolderNode, 0)
	for _, f := range folders {
		node := nodes[f.ID]
		if f.ParentID != nil {
			if parent, ok := nodes[*f.ParentID]; ok {
				parent.NestedFolders = append(parent.NestedFolders, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	return roots, nil
}

func (s *FolderService) RenameFolder(ctx context.Context, id int64, newName string) (*domain.Folder, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("folder name is required: %w", domain.ErrValidation)
	}

	folder, err := s.GetFolder(ctx, id)
	if err != nil {
		return nil, err
	}

	exists, err := s.folders.ActiveNameExists(ctx, folder.ParentID, newName, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check folder name: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("folder %q already exists: %w", newName, domain.ErrConflict)
	}

	if err := s.folders.UpdateName(ctx, id, newName); err != nil {
		return nil, err
	}

	folder.Name = newName
	return folder, nil
}

// MoveFolder перемещает папку под нового родителя. Перемещение в себя
// или в собственного потомка запрещено. Материализованные права при
// перемещении не пересчитываются.
func (s *FolderService) MoveFolder(ctx context.Context, id int64, newParentID *int64) error {
	folder, err := s.GetFolder(ctx, id)
	if err != nil {
		return err
	}

	if newParentID != nil {
		if *newParentID == id {
			return fmt.Errorf("cannot move folder into itself: %w", domain.ErrValidation)
		}

		target, err := s.GetFolder(ctx, *newParentID)
		if err != nil {
			return fmt.Errorf("failed to get target folder: %w", err)
		}

		isDescendant, err := s.isDescendant(ctx, target.ID, id)
		if err != nil {
			return err
		}
		if isDescendant {
			return fmt.Errorf("cannot move folder into its own subfolder: %w", domain.ErrValidation)
		}
	}

	exists, err := s.folders.ActiveNameExists(ctx, newParentID, folder.Name, id)
	if err != nil {
		return fmt.Errorf("failed to check folder name: %w", err)
	}
	if exists {
		return fmt.Errorf("folder %q already exists in target: %w", folder.Name, domain.ErrConflict)
	}

	return s.folders.UpdateParent(ctx, id, newParentID)
}

// isDescendant проверяет, лежит ли candidate в поддереве ancestor,
// поднимаясь по цепочке родителей с защитой от циклов
func (s *FolderService) isDescendant(ctx context.Context, candidateID, ancestorID int64) (bool, error) {
	visited := make(map[int64]bool)
	current := candidateID

	for {
		if current == ancestorID {
			return true, nil
		}
		if visited[current] {
			return false, fmt.Errorf("folder hierarchy contains a cycle at %d", current)
		}
		visited[current] = true

		folder, err := s.folders.GetByID(ctx, current)
		if err != nil {
			return false, fmt.Errorf("failed to walk folder ancestry: %w", err)
		}
		if folder.ParentID == nil {
			return false, nil
		}
		current = *folder.ParentID
	}
}

// DeleteFolder мягко удаляет папку и каскадом всех потомков.
// Обход — pre-order: узел помечается раньше своих детей, под удалённым
// предком не остается неудалённых потомков. Ошибка БД прерывает ветку
// и возвращается вызывающему.
func (s *FolderService) DeleteFolder(ctx context.Context, id int64) error {
	if _, err := s.folders.GetByID(ctx, id); err != nil {
		return err
	}

	now := time.Now().UTC()
	stack := []int64{id}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := s.folders.MarkDeleted(ctx, current, now); err != nil {
			return fmt.Errorf("failed to delete folder %d: %w", current, err)
		}

		if err := s.files.MarkDeletedByFolder(ctx, current, now); err != nil {
			return fmt.Errorf("failed to delete files of folder %d: %w", current, err)
		}

		children, err := s.folders.GetActiveChildren(ctx, current)
		if err != nil {
			return fmt.Errorf("failed to get children of folder %d: %w", current, err)
		}

		// Дети кладутся в обратном порядке, чтобы обход шел по
		// возрастанию идентификаторов
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i].ID)
		}
	}

	return nil
}

// RestoreFolder снимает флаг удаления с папки, её файлов и всех
// удалённых подпапок. Восстановление под всё ещё удалённым предком
// допустимо: такой узел доступен по прямому идентификатору.
func (s *FolderService) RestoreFolder(ctx context.Context, id int64) error {
	if _, err := s.folders.GetByID(ctx, id); err != nil {
		return err
	}

	stack := []int64{id}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// Детей собираем до восстановления узла: после снятия флага
		// выборка удалённых детей текущего узла не меняется, но порядок
		// оставляем единообразным с удалением
		children, err := s.folders.GetDeletedChildren(ctx, current)
		if err != nil {
			return fmt.Errorf("failed to get children of folder %d: %w", current, err)
		}

		if err := s.folders.MarkRestored(ctx, current); err != nil {
			return fmt.Errorf("failed to restore folder %d: %w", current, err)
		}

		if err := s.files.RestoreByFolder(ctx, current); err != nil {
			return fmt.Errorf("failed to restore files of folder %d: %w", current, err)
		}

		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i].ID)
		}
	}

	return nil
}

// PermanentDeleteFolder окончательно удаляет поддерево: сначала
// потомки, затем сама папка (post-order). Блобы удаляются по принципу
// лучших усилий: сбой удаления одного блоба логируется, очистка
// продолжается. Ошибка БД прерывает операцию.
func (s *FolderService) PermanentDeleteFolder(ctx context.Context, id int64) error {
	root, err := s.folders.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// Pre-order обход, затем очистка в обратном порядке
	order := []int64{id}
	stack := []int64{id}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := s.folders.GetDeletedChildren(ctx, current)
		if err != nil {
			return fmt.Errorf("failed to get children of folder %d: %w", current, err)
		}

		for _, child := range children {
			order = append(order, child.ID)
			stack = append(stack, child.ID)
		}
	}

	for i := len(order) - 1; i >= 0; i-- {
		if err := s.purgeFolderNode(ctx, order[i]); err != nil {
			return err
		}
	}

	// Для локального бэкенда убираем опустевшие физические каталоги.
	// У объектного хранилища каталогов нет.
	if cleaner, ok := s.blobs.(storage.DirCleaner); ok && root.CreatedBy != nil {
		if err := cleaner.RemoveEmptyDirs(ctx, *root.CreatedBy); err != nil {
			log.Printf("[PermanentDeleteFolder] Warning: failed to clean up directories: %v", err)
		}
	}

	return nil
}

func (s *FolderService) purgeFolderNode(ctx context.Context, folderID int64) error {
	files, err := s.files.ListDeletedByFolder(ctx, folderID)
	if err != nil {
		return fmt.Errorf("failed to list files of folder %d: %w", folderID, err)
	}

	for _, file := range files {
		// Потерянный блоб при удалённой строке БД приемлем, обратное — нет
		if err := s.blobs.Delete(ctx, file.StorageKey); err != nil {
			log.Printf("[PermanentDeleteFolder] Warning: failed to delete blob %s: %v", file.StorageKey, err)
		}

		if err := s.perms.DeleteByResource(ctx, file.UUID.String(), domain.ResourceTypeFile); err != nil {
			return fmt.Errorf("failed to delete permissions of file %s: %w", file.UUID, err)
		}

		if err := s.files.DeleteRow(ctx, file.UUID); err != nil {
			return fmt.Errorf("failed to delete file row %s: %w", file.UUID, err)
		}
	}

	if err := s.perms.DeleteByResource(ctx, strconv.FormatInt(folderID, 10), domain.ResourceTypeFolder); err != nil {
		return fmt.Errorf("failed to delete permissions of folder %d: %w", folderID, err)
	}

	if err := s.folders.DeleteRow(ctx, folderID); err != nil {
		return fmt.Errorf("failed to delete folder row %d: %w", folderID, err)
	}

	return nil
}

// ArchiveFolder пишет неудалённое содержимое поддерева в zip-архив.
// Пути внутри архива считаются от самой папки, её имя в префикс не
// входит. Файл с пропавшим блобом пропускается с записью в лог.
func (s *FolderService) ArchiveFolder(ctx context.Context, id int64, w io.Writer) error {
	root, err := s.GetFolder(ctx, id)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)

	type frame struct {
		folderID int64
		prefix   string
	}

	stack := []frame{{folderID: root.ID}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		files, err := s.files.ListAllByFolder(ctx, cur.folderID)
		if err != nil {
			return fmt.Errorf("failed to list files of folder %d: %w", cur.folderID, err)
		}

		for _, file := range files {
			if file.IsDeleted {
				continue
			}

			obj, err := s.blobs.GetObject(ctx, file.StorageKey)
			if err != nil {
				log.Printf("[ArchiveFolder] Warning: skipping file %s, blob %s: %v", file.UUID, file.StorageKey, err)
				continue
			}

			entry, err := zw.Create(cur.prefix + file.Name)
			if err != nil {
				obj.Close()
				return fmt.Errorf("failed to create archive entry for %s: %w", file.UUID, err)
			}

			_, err = io.Copy(entry, obj)
			obj.Close()
			if err != nil {
				return fmt.Errorf("failed to write archive entry for %s: %w", file.UUID, err)
			}
		}

		children, err := s.folders.GetActiveChildren(ctx, cur.folderID)
		if err != nil {
			return fmt.Errorf("failed to get children of folder %d: %w", cur.folderID, err)
		}

		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				folderID: children[i].ID,
				prefix:   cur.prefix + children[i].Name + "/",
			})
		}
	}

	return zw.Close()
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"fmdrive/internal/domain"
	"fmdrive/internal/storage"
)

// FileService реализует загрузку, скачивание и жизненный цикл файлов.
// Данные живут в блоб-хранилище, метаданные — в БД; связующее звено —
// неизменяемый storage_key и явный storage_backend в строке файла.
type FileService struct {
	files   FileStore
	folders *FolderService
	perms   PermissionStore
	blobs   storage.Storage
	backend domain.StorageBackend
}

func NewFileService(
	files FileStore,
	folders *FolderService,
	perms PermissionStore,
	blobs storage.Storage,
	backend domain.StorageBackend,
) *FileService {
	return &FileService{
		files:   files,
		folders: folders,
		perms:   perms,
		blobs:   blobs,
		backend: backend,
	}
}

// blobKey строит ключ объекта: {владелец}/{папка|root}/{uuid}.
// Ключ не содержит пользовательского имени, переименование файла
// блоб не трогает.
func blobKey(ownerID string, folderID *int64, id uuid.UUID) string {
	folder := "root"
	if folderID != nil {
		folder = strconv.FormatInt(*folderID, 10)
	}
	return fmt.Sprintf("%s/%s/%s", ownerID, folder, id)
}

func sameFolder(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Upload принимает пачку файлов в одну папку. Имена разрешаются
// суффиксами, блобы пишутся по одному, метаданные фиксируются единой
// транзакцией. При сбое транзакции уже записанные блобы убираются.
func (s *FileService) Upload(ctx context.Context, ownerID string, folderID *int64, uploads []domain.FileUpload) ([]*domain.File, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("no files to upload: %w", domain.ErrValidation)
	}

	if folderID != nil {
		if _, err := s.folders.GetFolder(ctx, *folderID); err != nil {
			return nil, fmt.Errorf("failed to get target folder: %w", err)
		}
	}

	reserved := make(map[string]bool, len(uploads))
	files := make([]*domain.File, 0, len(uploads))
	written := make([]string, 0, len(uploads))

	cleanup := func() {
		for _, key := range written {
			if err := s.blobs.Delete(ctx, key); err != nil {
				log.Printf("[Upload] Warning: failed to remove blob %s after rollback: %v", key, err)
			}
		}
	}

	for _, upload := range uploads {
		name, err := resolveFileName(ctx, s.files, upload.Name, folderID, ownerID, reserved)
		if err != nil {
			cleanup()
			return nil, err
		}
		reserved[name] = true

		id := uuid.New()
		key := blobKey(ownerID, folderID, id)

		if err := s.blobs.Put(ctx, key, bytes.NewReader(upload.Data), upload.MIMEType); err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to store blob for %q: %w", upload.Name, err)
		}
		written = append(written, key)

		files = append(files, &domain.File{
			UUID:           id,
			Name:           name,
			OriginalName:   upload.Name,
			FolderID:       folderID,
			StorageKey:     key,
			StorageBackend: s.backend,
			MIMEType:       upload.MIMEType,
			SizeBytes:      upload.Size,
			CreatedBy:      ownerID,
		})
	}

	if err := s.files.CreateBatch(ctx, files); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to save file metadata: %w", err)
	}

	log.Printf("[Upload] User %s uploaded %d file(s)", ownerID, len(files))
	return files, nil
}

// UploadWithPaths загружает файлы с относительными путями (перетаскивание
// папки). Цепочки папок материализуются идемпотентно, файлы
// раскладываются по листовым папкам своих путей.
func (s *FileService) UploadWithPaths(ctx context.Context, ownerID string, parentID *int64, uploads []domain.FileUpload) ([]*domain.File, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("no files to upload: %w", domain.ErrValidation)
	}

	// Группировка по директории сохраняет порядок первых вхождений
	groups := make(map[string][]domain.FileUpload)
	dirs := make([]string, 0)
	for _, upload := range uploads {
		dir := relativeDir(upload.RelativePath)
		if _, ok := groups[dir]; !ok {
			dirs = append(dirs, dir)
		}
		groups[dir] = append(groups[dir], upload)
	}

	result := make([]*domain.File, 0, len(uploads))
	for _, dir := range dirs {
		target := parentID
		if dir != "" {
			var err error
			target, err = s.folders.EnsureFolderPath(ctx, strings.Split(dir, "/"), parentID, ownerID)
			if err != nil {
				return nil, err
			}
		}

		files, err := s.Upload(ctx, ownerID, target, groups[dir])
		if err != nil {
			return nil, err
		}
		result = append(result, files...)
	}

	return result, nil
}

// relativeDir выделяет директорию из клиентского пути, отбрасывая
// имя файла и пустые сегменты
func relativeDir(relativePath string) string {
	relativePath = strings.Trim(strings.ReplaceAll(relativePath, "\\", "/"), "/")
	if relativePath == "" {
		return ""
	}

	parts := strings.Split(relativePath, "/")
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], "/")
}

func (s *FileService) GetFile(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	file, err := s.files.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	if file.IsDeleted {
		return nil, fmt.Errorf("file %s is deleted: %w", id, domain.ErrNotFound)
	}

	return file, nil
}

// Download отдает метаданные и поток содержимого файла
func (s *FileService) Download(ctx context.Context, id uuid.UUID) (*domain.File, storage.Object, error) {
	file, err := s.GetFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	obj, err := s.blobs.GetObject(ctx, file.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get blob %s: %w", file.StorageKey, err)
	}

	return file, obj, nil
}

func (s *FileService) RenameFile(ctx context.Context, id uuid.UUID, newName string) (*domain.File, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("file name is required: %w", domain.ErrValidation)
	}

	file, err := s.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}

	if newName == file.Name {
		return file, nil
	}

	taken, err := s.files.NameExists(ctx, newName, file.FolderID, file.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to check file name: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("file %q already exists: %w", newName, domain.ErrConflict)
	}

	if err := s.files.UpdateName(ctx, id, newName); err != nil {
		return nil, err
	}

	file.Name = newName
	return file, nil
}

// MoveFile переносит файл в другую папку. Блоб копируется под новый
// ключ, строка метаданных переключается на него, старый блоб затем
// удаляется по принципу лучших усилий.
func (s *FileService) MoveFile(ctx context.Context, id uuid.UUID, newFolderID *int64) (*domain.File, error) {
	file, err := s.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}

	// Перенос в ту же папку — ничего не делаем, иначе файл получит
	// суффикс из-за коллизии с самим собой
	if sameFolder(file.FolderID, newFolderID) {
		return file, nil
	}

	if newFolderID != nil {
		if _, err := s.folders.GetFolder(ctx, *newFolderID); err != nil {
			return nil, fmt.Errorf("failed to get target folder: %w", err)
		}
	}

	name, err := resolveFileName(ctx, s.files, file.Name, newFolderID, file.CreatedBy, nil)
	if err != nil {
		return nil, err
	}

	oldKey := file.StorageKey
	newKey := blobKey(file.CreatedBy, newFolderID, file.UUID)

	if err := s.blobs.Copy(ctx, oldKey, newKey); err != nil {
		return nil, fmt.Errorf("failed to copy blob %s: %w", oldKey, err)
	}

	if err := s.files.Relocate(ctx, id, newFolderID, name, newKey); err != nil {
		// Откат: прибираем копию, чтобы не копить сирот
		if delErr := s.blobs.Delete(ctx, newKey); delErr != nil {
			log.Printf("[MoveFile] Warning: failed to remove blob copy %s: %v", newKey, delErr)
		}
		return nil, fmt.Errorf("failed to relocate file %s: %w", id, err)
	}

	if err := s.blobs.Delete(ctx, oldKey); err != nil {
		log.Printf("[MoveFile] Warning: failed to delete old blob %s: %v", oldKey, err)
	}

	file.Name = name
	file.FolderID = newFolderID
	file.StorageKey = newKey
	return file, nil
}

// DeleteFile мягко удаляет файл, блоб остается на месте до очистки
func (s *FileService) DeleteFile(ctx context.Context, id uuid.UUID) error {
	if _, err := s.files.GetByUUID(ctx, id); err != nil {
		return err
	}

	return s.files.MarkDeleted(ctx, id, time.Now().UTC())
}

// RestoreFile снимает флаг удаления. Файл в папке, всё ещё лежащей в
// корзине, восстанавливается и доступен по прямому идентификатору.
func (s *FileService) RestoreFile(ctx context.Context, id uuid.UUID) error {
	if _, err := s.files.GetByUUID(ctx, id); err != nil {
		return err
	}

	return s.files.MarkRestored(ctx, id)
}

// PermanentDeleteFile окончательно удаляет файл: блоб, строки прав,
// строку метаданных. Сбой удаления блоба логируется и не прерывает
// очистку метаданных.
func (s *FileService) PermanentDeleteFile(ctx context.Context, id uuid.UUID) error {
	file, err := s.files.GetByUUID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, file.StorageKey); err != nil {
		log.Printf("[PermanentDeleteFile] Warning: failed to delete blob %s: %v", file.StorageKey, err)
	}

	if err := s.perms.DeleteByResource(ctx, file.UUID.String(), domain.ResourceTypeFile); err != nil {
		return fmt.Errorf("failed to delete permissions of file %s: %w", file.UUID, err)
	}

	if err := s.files.DeleteRow(ctx, id); err != nil {
		return fmt.Errorf("failed to delete file row %s: %w", id, err)
	}

	return nil
}

// ListFiles возвращает активные файлы пользователя в папке вместе с
// чужими файлами, доступными по праву чтения
func (s *FileService) ListFiles(ctx context.Context, userID string, folderID *int64) ([]domain.File, error) {
	files, err := s.files.ListActiveByFolder(ctx, folderID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	permitted, err := s.files.ListPermitted(ctx, userID, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permitted files: %w", err)
	}

	have := make(map[uuid.UUID]bool, len(files))
	for _, f := range files {
		have[f.UUID] = true
	}
	for _, f := range permitted {
		if !have[f.UUID] {
			files = append(files, f)
		}
	}

	return files, nil
}

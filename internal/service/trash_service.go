package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fmdrive/internal/domain"
)

// TrashContent — содержимое уровня корзины
type TrashContent struct {
	Folders []domain.Folder `json:"folders"`
	Files   []domain.File   `json:"files"`
}

// TrashService объединяет операции над корзиной: просмотр, полная
// очистка и автоматическая уборка по сроку хранения.
type TrashService struct {
	folders FolderStore
	files   FileStore

	folderSvc *FolderService
	fileSvc   *FileService
}

func NewTrashService(folders FolderStore, files FileStore, folderSvc *FolderService, fileSvc *FileService) *TrashService {
	return &TrashService{
		folders:   folders,
		files:     files,
		folderSvc: folderSvc,
		fileSvc:   fileSvc,
	}
}

// ListTrash возвращает уровень корзины. Без parentID — корневой
// уровень: удалённые узлы, чей родитель не удалён (вершины удалённых
// поддеревьев). С parentID — содержимое удалённой папки.
func (s *TrashService) ListTrash(ctx context.Context, userID string, parentID *int64) (*TrashContent, error) {
	folders, err := s.folders.ListTrash(ctx, userID, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trash folders: %w", err)
	}

	files, err := s.files.ListTrash(ctx, userID, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trash files: %w", err)
	}

	return &TrashContent{Folders: folders, Files: files}, nil
}

// EmptyTrash окончательно удаляет всё содержимое корзины пользователя.
// Сбой очистки одного элемента логируется, очистка продолжается.
func (s *TrashService) EmptyTrash(ctx context.Context, userID string) error {
	content, err := s.ListTrash(ctx, userID, nil)
	if err != nil {
		return err
	}

	for _, folder := range content.Folders {
		if err := s.folderSvc.PermanentDeleteFolder(ctx, folder.ID); err != nil {
			log.Printf("[EmptyTrash] Warning: failed to purge folder %d: %v", folder.ID, err)
		}
	}

	for _, file := range content.Files {
		if err := s.fileSvc.PermanentDeleteFile(ctx, file.UUID); err != nil {
			log.Printf("[EmptyTrash] Warning: failed to purge file %s: %v", file.UUID, err)
		}
	}

	log.Printf("[EmptyTrash] Purged %d folder(s) and %d file(s) for user %s",
		len(content.Folders), len(content.Files), userID)

	return nil
}

// Cleanup окончательно удаляет всё, что лежит в корзине дольше срока
// хранения. Сначала папки (поддеревья целиком), затем одиночные файлы.
// Ошибка по одному элементу не прерывает проход.
func (s *TrashService) Cleanup(ctx context.Context, cutoff time.Time) error {
	folders, err := s.folders.ListDeletedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list expired folders: %w", err)
	}

	purgedFolders := 0
	for _, folder := range folders {
		if err := s.folderSvc.PermanentDeleteFolder(ctx, folder.ID); err != nil {
			// Папка могла уйти вместе с родительским поддеревом
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			log.Printf("[Cleanup] Warning: failed to purge folder %d: %v", folder.ID, err)
			continue
		}
		purgedFolders++
	}

	files, err := s.files.ListDeletedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list expired files: %w", err)
	}

	purgedFiles := 0
	for _, file := range files {
		if err := s.fileSvc.PermanentDeleteFile(ctx, file.UUID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			log.Printf("[Cleanup] Warning: failed to purge file %s: %v", file.UUID, err)
			continue
		}
		purgedFiles++
	}

	if purgedFolders > 0 || purgedFiles > 0 {
		log.Printf("[Cleanup] Purged %d expired folder(s) and %d expired file(s)", purgedFolders, purgedFiles)
	}

	return nil
}

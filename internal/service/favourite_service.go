package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"fmdrive/internal/domain"
)

// FavouriteService управляет списком избранного пользователя
type FavouriteService struct {
	favourites FavouriteStore
	folders    FolderStore
	files      FileStore
}

func NewFavouriteService(favourites FavouriteStore, folders FolderStore, files FileStore) *FavouriteService {
	return &FavouriteService{
		favourites: favourites,
		folders:    folders,
		files:      files,
	}
}

// ToggleFolder переключает папку в избранном, возвращает новое состояние
func (s *FavouriteService) ToggleFolder(ctx context.Context, userID string, folderID int64) (bool, error) {
	folder, err := s.folders.GetByID(ctx, folderID)
	if err != nil {
		return false, err
	}
	if folder.IsDeleted {
		return false, fmt.Errorf("folder %d is deleted: %w", folderID, domain.ErrNotFound)
	}

	favourited, err := s.favourites.ToggleFolder(ctx, userID, folderID)
	if err != nil {
		return false, fmt.Errorf("failed to toggle favourite folder: %w", err)
	}

	log.Printf("[ToggleFavourite] User %s set folder %d favourited=%t", userID, folderID, favourited)
	return favourited, nil
}

// ToggleFile переключает файл в избранном, возвращает новое состояние
func (s *FavouriteService) ToggleFile(ctx context.Context, userID string, fileUUID uuid.UUID) (bool, error) {
	file, err := s.files.GetByUUID(ctx, fileUUID)
	if err != nil {
		return false, err
	}
	if file.IsDeleted {
		return false, fmt.Errorf("file %s is deleted: %w", fileUUID, domain.ErrNotFound)
	}

	favourited, err := s.favourites.ToggleFile(ctx, userID, fileUUID)
	if err != nil {
		return false, fmt.Errorf("failed to toggle favourite file: %w", err)
	}

	log.Printf("[ToggleFavourite] User %s set file %s favourited=%t", userID, fileUUID, favourited)
	return favourited, nil
}

// ListFavourites возвращает активное избранное пользователя.
// Удалённые в корзину элементы из выдачи выпадают и возвращаются
// после восстановления.
func (s *FavouriteService) ListFavourites(ctx context.Context, userID string) ([]domain.Folder, []domain.File, error) {
	folders, err := s.favourites.ListFolders(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list favourite folders: %w", err)
	}

	files, err := s.favourites.ListFiles(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list favourite files: %w", err)
	}

	return folders, files, nil
}

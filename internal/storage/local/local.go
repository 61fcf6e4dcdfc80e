package local

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"fmdrive/internal/domain"
	"fmdrive/internal/storage"
)

// Store хранит объекты как файлы под корневой директорией.
// Ключ объекта — относительный путь от корня.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	return &Store{root: root}, nil
}

// resolve переводит ключ в абсолютный путь и не выпускает его за корень
func (s *Store) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key is required: %w", domain.ErrValidation)
	}

	path := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(path, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("key %q escapes storage root: %w", key, domain.ErrValidation)
	}

	return path, nil
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Пишем во временный файл и переименовываем, чтобы не оставить
	// полузаписанный объект при обрыве
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write object: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to commit object: %w", err)
	}

	return nil
}

func (s *Store) GetObject(ctx context.Context, key string) (storage.Object, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return &localObject{
		ReadCloser:    f,
		contentLength: info.Size(),
	}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		// Отсутствующий объект считаем уже удалённым
		if os.IsNotExist(err) {
			log.Printf("[LocalStore] Delete: object %s already absent", key)
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}

	return true, nil
}

func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	src, err := s.GetObject(ctx, srcKey)
	if err != nil {
		return err
	}
	defer src.Close()

	return s.Put(ctx, dstKey, src, src.ContentType())
}

// RemoveEmptyDirs удаляет опустевшие каталоги под указанным префиксом.
// Вызывается после окончательного удаления папки.
func (s *Store) RemoveEmptyDirs(ctx context.Context, prefix string) error {
	path, err := s.resolve(prefix)
	if err != nil {
		return err
	}

	return removeEmptyDirs(path)
}

func removeEmptyDirs(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read directory: %w", err)
	}

	// Сначала обходим подкаталоги, затем решаем судьбу текущего
	for _, entry := range entries {
		if entry.IsDir() {
			if err := removeEmptyDirs(filepath.Join(dir, entry.Name())); err != nil {
				return err
			}
		}
	}

	remaining, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to re-read directory: %w", err)
	}

	if len(remaining) == 0 {
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove empty directory: %w", err)
		}
	}

	return nil
}

type localObject struct {
	io.ReadCloser
	contentLength int64
}

func (o *localObject) ContentLength() int64 {
	return o.contentLength
}

func (o *localObject) ContentType() string {
	// Локальная ФС не хранит тип содержимого, его хранит строка файла в БД
	return ""
}

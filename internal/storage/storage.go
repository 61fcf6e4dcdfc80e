package storage

import (
	"context"
	"io"
)

// Object определяет интерфейс для читаемого объекта хранилища
type Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

// Storage определяет единый интерфейс для работы с блоб-хранилищем.
// Реализации: локальная файловая система и S3-совместимое хранилище.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	GetObject(ctx context.Context, key string) (Object, error)
	// Delete идемпотентен: отсутствие объекта считается успехом
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
}

// DirCleaner реализуется бэкендами с физическими директориями.
// После окончательного удаления папки локальный бэкенд убирает
// опустевший каталог; у объектного хранилища аналога нет.
type DirCleaner interface {
	RemoveEmptyDirs(ctx context.Context, prefix string) error
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fmdrive/internal/domain"
	"fmdrive/internal/storage"
)

// In-memory реализации хранилищ для тестов сервисов. Повторяют
// семантику sqlx-репозиториев, включая фильтры is_deleted и порядок
// выборки по идентификатору.

// --- блоб-хранилище ---

type memObject struct {
	*bytes.Reader
	contentType string
}

func (o *memObject) Close() error         { return nil }
func (o *memObject) ContentLength() int64 { return int64(o.Reader.Len()) }
func (o *memObject) ContentType() string  { return o.contentType }

type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	// failDelete эмулирует сбой хранилища при удалении конкретных ключей
	failDelete map[string]bool
	// failPut эмулирует сбой записи
	failPut map[string]bool
	// putsUntilFail > 0 — сбой на N-й по счету записи
	putsUntilFail int
	cleaned       []string
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{
		objects:    make(map[string][]byte),
		types:      make(map[string]string),
		failDelete: make(map[string]bool),
		failPut:    make(map[string]bool),
	}
}

func (s *memBlobStore) Put(_ context.Context, key string, r io.Reader, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failPut[key] {
		return fmt.Errorf("simulated put failure for %s", key)
	}
	if s.putsUntilFail > 0 {
		s.putsUntilFail--
		if s.putsUntilFail == 0 {
			return fmt.Errorf("simulated put failure for %s", key)
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	s.types[key] = contentType
	return nil
}

func (s *memBlobStore) GetObject(_ context.Context, key string) (storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, domain.ErrNotFound)
	}
	return &memObject{Reader: bytes.NewReader(data), contentType: s.types[key]}, nil
}

func (s *memBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failDelete[key] {
		return fmt.Errorf("simulated delete failure for %s", key)
	}
	delete(s.objects, key)
	delete(s.types, key)
	return nil
}

func (s *memBlobStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.objects[key]
	return ok, nil
}

func (s *memBlobStore) Copy(_ context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[srcKey]
	if !ok {
		return fmt.Errorf("object %s: %w", srcKey, domain.ErrNotFound)
	}
	s.objects[dstKey] = append([]byte(nil), data...)
	s.types[dstKey] = s.types[srcKey]
	return nil
}

func (s *memBlobStore) RemoveEmptyDirs(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleaned = append(s.cleaned, prefix)
	return nil
}

func (s *memBlobStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.objects[key]
	return ok
}

func (s *memBlobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.objects)
}

// --- папки ---

type memFolderStore struct {
	seq     int64
	folders map[int64]*domain.Folder
	perms   *memPermissionStore
}

func newMemFolderStore() *memFolderStore {
	return &memFolderStore{folders: make(map[int64]*domain.Folder)}
}

func (s *memFolderStore) Create(_ context.Context, folder *domain.Folder) error {
	s.seq++
	folder.ID = s.seq
	folder.CreatedAt = time.Now().UTC()
	folder.UpdatedAt = folder.CreatedAt

	copied := *folder
	s.folders[folder.ID] = &copied
	return nil
}

func (s *memFolderStore) GetByID(_ context.Context, id int64) (*domain.Folder, error) {
	folder, ok := s.folders[id]
	if !ok {
		return nil, fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
	}
	copied := *folder
	return &copied, nil
}

func (s *memFolderStore) FindActiveByNameAndParent(_ context.Context, name string, parentID *int64, createdBy string) (*domain.Folder, error) {
	var found *domain.Folder
	for _, f := range s.folders {
		if f.IsDeleted || f.Name != name || !sameID(f.ParentID, parentID) {
			continue
		}
		if f.CreatedBy == nil || *f.CreatedBy != createdBy {
			continue
		}
		if found == nil || f.ID < found.ID {
			found = f
		}
	}
	if found == nil {
		return nil, fmt.Errorf("folder %q: %w", name, domain.ErrNotFound)
	}
	copied := *found
	return &copied, nil
}

func (s *memFolderStore) ListByOwner(_ context.Context, userID string) ([]domain.Folder, error) {
	result := make([]domain.Folder, 0)
	for _, f := range s.folders {
		if !f.IsDeleted && f.CreatedBy != nil && *f.CreatedBy == userID {
			result = append(result, *f)
		}
	}
	sortFolders(result)
	return result, nil
}

func (s *memFolderStore) ListPermitted(_ context.Context, userID string) ([]domain.Folder, error) {
	result := make([]domain.Folder, 0)
	if s.perms == nil {
		return result, nil
	}

	for _, p := range s.perms.rows {
		if p.UserID != userID || p.ResourceType != domain.ResourceTypeFolder || !p.CanRead {
			continue
		}
		var id int64
		fmt.Sscanf(p.ResourceID, "%d", &id)
		if f, ok := s.folders[id]; ok && !f.IsDeleted {
			result = append(result, *f)
		}
	}
	sortFolders(result)
	return result, nil
}

func (s *memFolderStore) childrenWhere(parentID int64, keep func(*domain.Folder) bool) []domain.Folder {
	result := make([]domain.Folder, 0)
	for _, f := range s.folders {
		if f.ParentID != nil && *f.ParentID == parentID && keep(f) {
			result = append(result, *f)
		}
	}
	sortFolders(result)
	return result
}

func (s *memFolderStore) GetChildren(_ context.Context, parentID int64) ([]domain.Folder, error) {
	return s.childrenWhere(parentID, func(*domain.Folder) bool { return true }), nil
}

func (s *memFolderStore) GetActiveChildren(_ context.Context, parentID int64) ([]domain.Folder, error) {
	return s.childrenWhere(parentID, func(f *domain.Folder) bool { return !f.IsDeleted }), nil
}

func (s *memFolderStore) GetDeletedChildren(_ context.Context, parentID int64) ([]domain.Folder, error) {
	return s.childrenWhere(parentID, func(f *domain.Folder) bool { return f.IsDeleted }), nil
}

func (s *memFolderStore) MarkDeleted(_ context.Context, id int64, at time.Time) error {
	f, ok := s.folders[id]
	if !ok {
		return fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
	}
	f.IsDeleted = true
	deletedAt := at
	f.DeletedAt = &deletedAt
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memFolderStore) MarkRestored(_ context.Context, id int64) error {
	f, ok := s.folders[id]
	if !ok {
		return fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
	}
	f.IsDeleted = false
	f.DeletedAt = nil
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memFolderStore) UpdateName(_ context.Context, id int64, name string) error {
	f, ok := s.folders[id]
	if !ok {
		return fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
	}
	f.Name = name
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memFolderStore) UpdateParent(_ context.Context, id int64, parentID *int64) error {
	f, ok := s.folders[id]
	if !ok {
		return fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
	}
	f.ParentID = parentID
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memFolderStore) ActiveNameExists(_ context.Context, parentID *int64, name string, excludeID int64) (bool, error) {
	for _, f := range s.folders {
		if !f.IsDeleted && f.ID != excludeID && f.Name == name && sameID(f.ParentID, parentID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memFolderStore) ListTrash(_ context.Context, userID string, parentID *int64) ([]domain.Folder, error) {
	result := make([]domain.Folder, 0)
	for _, f := range s.folders {
		if !f.IsDeleted || f.CreatedBy == nil || *f.CreatedBy != userID {
			continue
		}
		if parentID != nil {
			if f.ParentID != nil && *f.ParentID == *parentID {
				result = append(result, *f)
			}
			continue
		}
		// Корень корзины: родитель отсутствует или не удалён
		if f.ParentID == nil {
			result = append(result, *f)
			continue
		}
		if parent, ok := s.folders[*f.ParentID]; !ok || !parent.IsDeleted {
			result = append(result, *f)
		}
	}
	sortFolders(result)
	return result, nil
}

func (s *memFolderStore) ListDeletedBefore(_ context.Context, cutoff time.Time) ([]domain.Folder, error) {
	result := make([]domain.Folder, 0)
	for _, f := range s.folders {
		if f.IsDeleted && f.DeletedAt != nil && f.DeletedAt.Before(cutoff) {
			result = append(result, *f)
		}
	}
	sortFolders(result)
	return result, nil
}

func (s *memFolderStore) DeleteRow(_ context.Context, id int64) error {
	delete(s.folders, id)
	return nil
}

// --- файлы ---

type memFileStore struct {
	files       map[uuid.UUID]*domain.File
	perms       *memPermissionStore
	folderStore *memFolderStore
}

func newMemFileStore() *memFileStore {
	return &memFileStore{files: make(map[uuid.UUID]*domain.File)}
}

func (s *memFileStore) CreateBatch(_ context.Context, files []*domain.File) error {
	now := time.Now().UTC()
	for _, f := range files {
		f.CreatedAt = now
		f.UpdatedAt = now
		copied := *f
		s.files[f.UUID] = &copied
	}
	return nil
}

func (s *memFileStore) GetByUUID(_ context.Context, id uuid.UUID) (*domain.File, error) {
	f, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	copied := *f
	return &copied, nil
}

func (s *memFileStore) ListActiveByFolder(_ context.Context, folderID *int64, userID string) ([]domain.File, error) {
	result := make([]domain.File, 0)
	for _, f := range s.files {
		if !f.IsDeleted && f.CreatedBy == userID && sameID(f.FolderID, folderID) {
			result = append(result, *f)
		}
	}
	sortFiles(result)
	return result, nil
}

func (s *memFileStore) ListPermitted(_ context.Context, userID string, folderID *int64) ([]domain.File, error) {
	result := make([]domain.File, 0)
	if s.perms == nil {
		return result, nil
	}

	for _, p := range s.perms.rows {
		if p.UserID != userID || p.ResourceType != domain.ResourceTypeFile || !p.CanRead {
			continue
		}
		id, err := uuid.Parse(p.ResourceID)
		if err != nil {
			continue
		}
		f, ok := s.files[id]
		if !ok || f.IsDeleted {
			continue
		}
		if folderID != nil && !sameID(f.FolderID, folderID) {
			continue
		}
		result = append(result, *f)
	}
	sortFiles(result)
	return result, nil
}

func (s *memFileStore) listByFolder(folderID int64, keep func(*domain.File) bool) []domain.File {
	result := make([]domain.File, 0)
	for _, f := range s.files {
		if f.FolderID != nil && *f.FolderID == folderID && keep(f) {
			result = append(result, *f)
		}
	}
	sortFiles(result)
	return result
}

func (s *memFileStore) ListAllByFolder(_ context.Context, folderID int64) ([]domain.File, error) {
	return s.listByFolder(folderID, func(*domain.File) bool { return true }), nil
}

func (s *memFileStore) ListDeletedByFolder(_ context.Context, folderID int64) ([]domain.File, error) {
	return s.listByFolder(folderID, func(f *domain.File) bool { return f.IsDeleted }), nil
}

func (s *memFileStore) NameExists(_ context.Context, name string, folderID *int64, createdBy string) (bool, error) {
	for _, f := range s.files {
		if !f.IsDeleted && f.Name == name && f.CreatedBy == createdBy && sameID(f.FolderID, folderID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memFileStore) MarkDeletedByFolder(_ context.Context, folderID int64, at time.Time) error {
	for _, f := range s.files {
		if f.FolderID != nil && *f.FolderID == folderID && !f.IsDeleted {
			f.IsDeleted = true
			deletedAt := at
			f.DeletedAt = &deletedAt
			f.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *memFileStore) RestoreByFolder(_ context.Context, folderID int64) error {
	for _, f := range s.files {
		if f.FolderID != nil && *f.FolderID == folderID && f.IsDeleted {
			f.IsDeleted = false
			f.DeletedAt = nil
			f.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *memFileStore) MarkDeleted(_ context.Context, id uuid.UUID, at time.Time) error {
	f, ok := s.files[id]
	if !ok {
		return fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	f.IsDeleted = true
	deletedAt := at
	f.DeletedAt = &deletedAt
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memFileStore) MarkRestored(_ context.Context, id uuid.UUID) error {
	f, ok := s.files[id]
	if !ok {
		return fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	f.IsDeleted = false
	f.DeletedAt = nil
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memFileStore) UpdateName(_ context.Context, id uuid.UUID, name string) error {
	f, ok := s.files[id]
	if !ok {
		return fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	f.Name = name
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memFileStore) Relocate(_ context.Context, id uuid.UUID, folderID *int64, name, storageKey string) error {
	f, ok := s.files[id]
	if !ok {
		return fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	f.FolderID = folderID
	f.Name = name
	f.StorageKey = storageKey
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memFileStore) ListTrash(_ context.Context, userID string, folderID *int64) ([]domain.File, error) {
	result := make([]domain.File, 0)
	for _, f := range s.files {
		if !f.IsDeleted || f.CreatedBy != userID {
			continue
		}
		if folderID != nil {
			if f.FolderID != nil && *f.FolderID == *folderID {
				result = append(result, *f)
			}
			continue
		}
		// Файл показывается в корне корзины, если его папка не удалена
		if f.FolderID == nil {
			result = append(result, *f)
			continue
		}
		if folder, ok := s.folderStore.folders[*f.FolderID]; !ok || !folder.IsDeleted {
			result = append(result, *f)
		}
	}
	sortFiles(result)
	return result, nil
}

func (s *memFileStore) ListDeletedBefore(_ context.Context, cutoff time.Time) ([]domain.File, error) {
	result := make([]domain.File, 0)
	for _, f := range s.files {
		if f.IsDeleted && f.DeletedAt != nil && f.DeletedAt.Before(cutoff) {
			result = append(result, *f)
		}
	}
	sortFiles(result)
	return result, nil
}

func (s *memFileStore) DeleteRow(_ context.Context, id uuid.UUID) error {
	delete(s.files, id)
	return nil
}

// --- права доступа ---

type memPermissionStore struct {
	rows map[string]*domain.Permission
}

func newMemPermissionStore() *memPermissionStore {
	return &memPermissionStore{rows: make(map[string]*domain.Permission)}
}

func permKey(userID, resourceID string, resourceType domain.ResourceType) string {
	return userID + "|" + resourceID + "|" + string(resourceType)
}

func (s *memPermissionStore) Get(_ context.Context, userID, resourceID string, resourceType domain.ResourceType) (*domain.Permission, error) {
	p, ok := s.rows[permKey(userID, resourceID, resourceType)]
	if !ok {
		return nil, fmt.Errorf("permission: %w", domain.ErrNotFound)
	}
	copied := *p
	return &copied, nil
}

func (s *memPermissionStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Permission, error) {
	for _, p := range s.rows {
		if p.ID == id {
			copied := *p
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("permission %s: %w", id, domain.ErrNotFound)
}

func (s *memPermissionStore) Upsert(_ context.Context, perm *domain.Permission) error {
	key := permKey(perm.UserID, perm.ResourceID, perm.ResourceType)
	now := time.Now().UTC()

	if existing, ok := s.rows[key]; ok {
		existing.CanRead = perm.CanRead
		existing.CanDownload = perm.CanDownload
		existing.UpdatedAt = now
		perm.ID = existing.ID
		return nil
	}

	if perm.ID == uuid.Nil {
		perm.ID = uuid.New()
	}
	perm.CreatedAt = now
	perm.UpdatedAt = now

	copied := *perm
	s.rows[key] = &copied
	return nil
}

func (s *memPermissionStore) Delete(_ context.Context, id uuid.UUID) error {
	for key, p := range s.rows {
		if p.ID == id {
			delete(s.rows, key)
			return nil
		}
	}
	return fmt.Errorf("permission %s: %w", id, domain.ErrNotFound)
}

func (s *memPermissionStore) DeleteForUserResource(_ context.Context, userID, resourceID string, resourceType domain.ResourceType) error {
	delete(s.rows, permKey(userID, resourceID, resourceType))
	return nil
}

func (s *memPermissionStore) DeleteByResource(_ context.Context, resourceID string, resourceType domain.ResourceType) error {
	for key, p := range s.rows {
		if p.ResourceID == resourceID && p.ResourceType == resourceType {
			delete(s.rows, key)
		}
	}
	return nil
}

func (s *memPermissionStore) ListByResource(_ context.Context, resourceID string, resourceType domain.ResourceType) ([]domain.Permission, error) {
	result := make([]domain.Permission, 0)
	for _, p := range s.rows {
		if p.ResourceID == resourceID && p.ResourceType == resourceType {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (s *memPermissionStore) ListByUser(_ context.Context, userID string) ([]domain.Permission, error) {
	result := make([]domain.Permission, 0)
	for _, p := range s.rows {
		if p.UserID == userID {
			result = append(result, *p)
		}
	}
	return result, nil
}

// --- избранное ---

type memFavouriteStore struct {
	folders map[string]map[int64]time.Time
	files   map[string]map[uuid.UUID]time.Time

	folderStore *memFolderStore
	fileStore   *memFileStore
}

func newMemFavouriteStore(folders *memFolderStore, files *memFileStore) *memFavouriteStore {
	return &memFavouriteStore{
		folders:     make(map[string]map[int64]time.Time),
		files:       make(map[string]map[uuid.UUID]time.Time),
		folderStore: folders,
		fileStore:   files,
	}
}

func (s *memFavouriteStore) ToggleFolder(_ context.Context, userID string, folderID int64) (bool, error) {
	if s.folders[userID] == nil {
		s.folders[userID] = make(map[int64]time.Time)
	}
	if _, ok := s.folders[userID][folderID]; ok {
		delete(s.folders[userID], folderID)
		return false, nil
	}
	s.folders[userID][folderID] = time.Now().UTC()
	return true, nil
}

func (s *memFavouriteStore) ToggleFile(_ context.Context, userID string, fileUUID uuid.UUID) (bool, error) {
	if s.files[userID] == nil {
		s.files[userID] = make(map[uuid.UUID]time.Time)
	}
	if _, ok := s.files[userID][fileUUID]; ok {
		delete(s.files[userID], fileUUID)
		return false, nil
	}
	s.files[userID][fileUUID] = time.Now().UTC()
	return true, nil
}

func (s *memFavouriteStore) ListFolders(_ context.Context, userID string) ([]domain.Folder, error) {
	result := make([]domain.Folder, 0)
	for id := range s.folders[userID] {
		if f, ok := s.folderStore.folders[id]; ok && !f.IsDeleted {
			copied := *f
			copied.Favourited = true
			result = append(result, copied)
		}
	}
	sortFolders(result)
	return result, nil
}

func (s *memFavouriteStore) ListFiles(_ context.Context, userID string) ([]domain.File, error) {
	result := make([]domain.File, 0)
	for id := range s.files[userID] {
		if f, ok := s.fileStore.files[id]; ok && !f.IsDeleted {
			copied := *f
			copied.Favourited = true
			result = append(result, copied)
		}
	}
	sortFiles(result)
	return result, nil
}

// --- вспомогательное ---

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortFolders(folders []domain.Folder) {
	sort.Slice(folders, func(i, j int) bool { return folders[i].ID < folders[j].ID })
}

func sortFiles(files []domain.File) {
	sort.Slice(files, func(i, j int) bool {
		return strings.Compare(files[i].UUID.String(), files[j].UUID.String()) < 0
	})
}

// fixture собирает сервисы поверх in-memory хранилищ
type fixture struct {
	folders *memFolderStore
	files   *memFileStore
	perms   *memPermissionStore
	favs    *memFavouriteStore
	blobs   *memBlobStore

	folderSvc *FolderService
	fileSvc   *FileService
	permSvc   *PermissionService
	trashSvc  *TrashService
	favSvc    *FavouriteService
}

func newFixture() *fixture {
	folders := newMemFolderStore()
	files := newMemFileStore()
	perms := newMemPermissionStore()
	blobs := newMemBlobStore()
	favs := newMemFavouriteStore(folders, files)

	folders.perms = perms
	files.perms = perms
	files.folderStore = folders

	folderSvc := NewFolderService(folders, files, perms, blobs)
	fileSvc := NewFileService(files, folderSvc, perms, blobs, domain.BackendLocal)
	permSvc := NewPermissionService(perms, folders, files)
	trashSvc := NewTrashService(folders, files, folderSvc, fileSvc)
	favSvc := NewFavouriteService(favs, folders, files)

	return &fixture{
		folders:   folders,
		files:     files,
		perms:     perms,
		favs:      favs,
		blobs:     blobs,
		folderSvc: folderSvc,
		fileSvc:   fileSvc,
		permSvc:   permSvc,
		trashSvc:  trashSvc,
		favSvc:    favSvc,
	}
}

func (f *fixture) mustCreateFolder(ctx context.Context, name string, parentID *int64, owner string) *domain.Folder {
	folder, err := f.folderSvc.CreateFolder(ctx, name, parentID, owner)
	if err != nil {
		panic(err)
	}
	return folder
}

func (f *fixture) mustUpload(ctx context.Context, owner string, folderID *int64, names ...string) []*domain.File {
	uploads := make([]domain.FileUpload, 0, len(names))
	for _, name := range names {
		uploads = append(uploads, domain.FileUpload{
			Name:     name,
			MIMEType: "application/octet-stream",
			Size:     4,
			Data:     []byte("data"),
		})
	}

	files, err := f.fileSvc.Upload(ctx, owner, folderID, uploads)
	if err != nil {
		panic(err)
	}
	return files
}

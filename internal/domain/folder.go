package domain

import "time"

type Folder struct {
	ID        int64      `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	ParentID  *int64     `json:"parent_id,omitempty" db:"parent_id"`
	CreatedBy *string    `json:"created_by,omitempty" db:"created_by"`
	IsDeleted bool       `json:"is_deleted" db:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`

	// Вычисляемое поле, заполняется только в списочных запросах
	Favourited bool `json:"favourited" db:"favourited"`
}

// FolderNode представляет узел дерева папок пользователя
type FolderNode struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	ParentID      *int64        `json:"parent_id,omitempty"`
	NestedFolders []*FolderNode `json:"nested_folders"`
}

type FolderContent struct {
	Folder  Folder   `json:"folder"`
	Files   []File   `json:"files"`
	Folders []Folder `json:"subfolders"`
}

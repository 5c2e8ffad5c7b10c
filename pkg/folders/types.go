package folders

import "time"

// Folder is a node of the document hierarchy. ParentID is nil for roots.
type Folder struct {
	ID         int64     `json:"id"`
	FolderName string    `json:"folderName"`
	ParentID   *int64    `json:"parentId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Node is a folder with its visible children
type Node struct {
	Folder
	Children []*Node `json:"children"`
}

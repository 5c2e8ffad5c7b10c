package inheritance

// Result describes one propagation run
type Result struct {
	RootFolderID int64   `json:"rootFolderId"`
	GroupID      int64   `json:"groupId"`
	FolderIDs    []int64 `json:"folderIds"`
	FileIDs      []int64 `json:"fileIds"`

	// FoldersChanged and FilesChanged count the grants actually added (Apply)
	// or removed (Remove).
	FoldersChanged int `json:"foldersChanged"`
	FilesChanged   int `json:"filesChanged"`
}

package grants

import "time"

// FolderGrant gives a group access to a folder
type FolderGrant struct {
	FolderID  int64     `json:"folderId"`
	GroupID   int64     `json:"groupId"`
	GroupName string    `json:"groupName"`
	CreatedAt time.Time `json:"createdAt"`
}

// FileGrant gives a group access to a file
type FileGrant struct {
	FileID    int64     `json:"fileId"`
	GroupID   int64     `json:"groupId"`
	GroupName string    `json:"groupName"`
	CreatedAt time.Time `json:"createdAt"`
}

package groups

import (
	"time"
)

// Group is a named set of users that permissions are granted to
type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Member is a user's membership in a group
type Member struct {
	UserID   int64     `json:"userId"`
	GroupID  int64     `json:"groupId"`
	Username string    `json:"username"`
	FullName string    `json:"fullname"`
	AddedAt  time.Time `json:"addedAt"`
}

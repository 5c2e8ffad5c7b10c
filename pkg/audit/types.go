package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin         EventType = "auth.login"
	EventTypeAuthLoginFailed   EventType = "auth.login_failed"
	EventTypeAuthLogout        EventType = "auth.logout"
	EventTypeAuthPasswordReset EventType = "auth.password_reset"

	// Authorization events
	EventTypeAuthzAccessDenied      EventType = "authz.access_denied"
	EventTypeAuthzFolderGrant       EventType = "authz.folder_grant"
	EventTypeAuthzFolderRevoke      EventType = "authz.folder_revoke"
	EventTypeAuthzFileGrant         EventType = "authz.file_grant"
	EventTypeAuthzFileRevoke        EventType = "authz.file_revoke"
	EventTypeAuthzInheritanceApply  EventType = "authz.inheritance_apply"
	EventTypeAuthzInheritanceRemove EventType = "authz.inheritance_remove"

	// Data mutation events
	EventTypeDataFolderCreate EventType = "data.folder_create"
	EventTypeDataFolderUpdate EventType = "data.folder_update"
	EventTypeDataFolderDelete EventType = "data.folder_delete"
	EventTypeDataFileUpload   EventType = "data.file_upload"
	EventTypeDataFileUpdate   EventType = "data.file_update"
	EventTypeDataFileDelete   EventType = "data.file_delete"

	// Admin events
	EventTypeAdminGroupCreate       EventType = "admin.group_create"
	EventTypeAdminGroupUpdate       EventType = "admin.group_update"
	EventTypeAdminGroupDelete       EventType = "admin.group_delete"
	EventTypeAdminGroupMemberAdd    EventType = "admin.group_member_add"
	EventTypeAdminGroupMemberRemove EventType = "admin.group_member_remove"
	EventTypeAdminUserCreate        EventType = "admin.user_create"
	EventTypeAdminUserUpdate        EventType = "admin.user_update"
	EventTypeAdminUserDelete        EventType = "admin.user_delete"
	EventTypeAdminUserActivate      EventType = "admin.user_activate"
	EventTypeAdminUserDeactivate    EventType = "admin.user_deactivate"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceTypeFolder ResourceType = "folder"
	ResourceTypeFile   ResourceType = "file"
	ResourceTypeGroup  ResourceType = "group"
	ResourceTypeUser   ResourceType = "user"
	ResourceTypeRoute  ResourceType = "route"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID   *int64 `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Changes      *ChangeDetails         `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID     *int64
	EventTypes []EventType
	Status     *EventStatus

	ResourceType ResourceType
	ResourceID   string

	Limit  int
	Offset int
}

// RetentionPolicy defines how long audit logs should be kept
type RetentionPolicy struct {
	RetentionDays int
}

// DefaultRetentionPolicy returns a default retention policy (90 days)
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 90}
}

// Cutoff returns the instant before which events are purged
func (p RetentionPolicy) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.RetentionDays)
}

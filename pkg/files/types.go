package files

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

// Type is the document category derived from the upload's MIME type
type Type string

const (
	TypePDF        Type = "pdf"
	TypeImage      Type = "image"
	TypeWord       Type = "word"
	TypeExcel      Type = "excel"
	TypePowerPoint Type = "powerpoint"
	TypeOther      Type = "other"
)

// allowedMIMETypes is the upload allow-list
var allowedMIMETypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// versionPattern accepts dotted numeric versions such as 1, 2.0 or 1.4.12
var versionPattern = regexp.MustCompile(`^\d+(\.\d+)*$`)

// Allowed reports whether uploads of mimeType are accepted
func Allowed(mimeType string) bool {
	return slices.Contains(allowedMIMETypes, normalizeMIME(mimeType))
}

// Classify maps a MIME type to its document type
func Classify(mimeType string) Type {
	switch mimeType = normalizeMIME(mimeType); mimeType {
	case "application/pdf":
		return TypePDF
	case "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return TypeWord
	case "application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return TypeExcel
	case "application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation":
		return TypePowerPoint
	}
	if strings.HasPrefix(mimeType, "image/") {
		return TypeImage
	}
	return TypeOther
}

// ParseType validates a type path segment
func ParseType(s string) (Type, bool) {
	switch t := Type(s); t {
	case TypePDF, TypeImage, TypeWord, TypeExcel, TypePowerPoint, TypeOther:
		return t, true
	}
	return "", false
}

func normalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// File is a stored document
type File struct {
	ID              int64     `json:"id"`
	DocumentName    string    `json:"documentName"`
	FileName        string    `json:"fileName"`
	PreviewFileName *string   `json:"previewFileName"`
	Type            Type      `json:"type"`
	MimeType        string    `json:"mimeType"`
	Size            int64     `json:"size"`
	FolderID        int64     `json:"folderId"`
	TicketNumber    string    `json:"ticketNumber"`
	Version         string    `json:"version"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Filter narrows a listing. IDs nil means every file; a non-nil IDs limits
// the listing to those ids.
type Filter struct {
	Type     Type
	FolderID int64
	IDs      []int64
}

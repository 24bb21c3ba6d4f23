package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Task is the demo resource owned by the user who created it.
type Task struct {
	Base
	Title       string `gorm:"not null;size:200" json:"title"`
	Description string `gorm:"not null;default:''" json:"description"`
	UserID      string `gorm:"type:uuid;index" json:"userId"`
	User        *User  `json:"user,omitempty"`
}

// OwnerID implements the ownership lookup used by the task routes.
func (t *Task) OwnerID() string { return t.UserID }

// File records an uploaded object. Path is the storage key, never a URL.
type File struct {
	Base
	UserID    string `gorm:"type:uuid;index" json:"userId"`
	User      *User  `json:"user,omitempty"`
	Path      string `gorm:"not null;uniqueIndex" json:"path"`
	Name      string `gorm:"not null;size:255" json:"name"`
	Size      int64  `gorm:"not null" json:"size"`
	Type      string `gorm:"not null;size:127" json:"type"`
	SignedURL string `gorm:"-" json:"signedUrl,omitempty"`
}

func (f *File) OwnerID() string { return f.UserID }

// AfterFind attaches a short-lived download URL.
func (f *File) AfterFind(tx *gorm.DB) error {
	url, err := signFileURL(tx.Statement.Context, f.Path)
	if err != nil {
		return fmt.Errorf("sign %s: %w", f.Path, err)
	}
	f.SignedURL = url
	return nil
}

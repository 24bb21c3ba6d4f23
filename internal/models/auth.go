package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// User is an account. Roles drive ACL checks; Password is a bcrypt hash and never serialized.
type User struct {
	Base
	FirstName       string                      `gorm:"not null" json:"firstName"`
	LastName        string                      `gorm:"not null" json:"lastName"`
	DisplayName     string                      `json:"displayName"`
	Bio             string                      `json:"bio,omitempty"`
	Position        string                      `json:"position,omitempty"`
	Email           string                      `gorm:"uniqueIndex;not null" json:"email"`
	Username        string                      `gorm:"uniqueIndex;not null" json:"username"`
	Password        string                      `json:"-" admin:"listDisplay:exclude;listFetch:exclude;search:exclude;view:exclude;addForm:exclude;editForm:exclude"`
	ProfileImageURL string                      `json:"profileImageURL,omitempty"`
	Roles           datatypes.JSONSlice[string] `gorm:"type:jsonb;not null" json:"roles"`
	Files           []File                      `gorm:"foreignKey:UserID" json:"files,omitempty"`

	// Provider is ProviderLocal or ProviderGoogle; ProviderData keeps the raw profile.
	Provider     string         `gorm:"default:'local'" json:"provider"`
	ProviderID   string         `gorm:"index" json:"providerId,omitempty"`
	ProviderData datatypes.JSON `gorm:"type:jsonb" json:"providerData,omitempty"`
}

// HasRole reports whether the user carries role.
func (u *User) HasRole(role string) bool {
	return u != nil && slices.Contains(u.Roles, role)
}

type PasswordReset struct {
	Base
	User      *User     `json:"user,omitempty"`
	UserID    string    `gorm:"type:uuid;not null" json:"userId"`
	Code      string    `gorm:"uniqueIndex;not null" json:"-"`
	Used      bool      `gorm:"default:false" json:"used"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthTransaction is one issued session. Tokens are only honoured while their transaction exists.
type AuthTransaction struct {
	Base
	UserID    string    `gorm:"type:uuid;not null;index" json:"userId"`
	User      *User     `json:"user,omitempty"`
	Token     string    `gorm:"not null;index" json:"-"`
	Refresh   string    `gorm:"not null;index" json:"-"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	ExpiresAt time.Time `json:"expiresAt"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by every table. Rows are never removed: deletion sets
// IsDeleted and stamps DeletedAt.
type Base struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	DeletedAt time.Time `gorm:"index;default:NULL" json:"-"`
	IsDeleted bool      `gorm:"not null;default:false" json:"isDeleted"`
}

func (base *Base) BeforeCreate(*gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.NewString()
	}
	return nil
}

// Live restricts a query to rows that have not been soft-deleted.
func Live(db *gorm.DB) *gorm.DB {
	return db.Where("is_deleted = false")
}

// Tombstone is the column set written when a row is soft-deleted.
func Tombstone(at time.Time) map[string]interface{} {
	return map[string]interface{}{"is_deleted": true, "deleted_at": at}
}

// Authentication providers
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

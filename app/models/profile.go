package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile is the UUID keyed account row that replaces User.
type Profile struct {
	ID                  uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	Email               string         `gorm:"uniqueIndex;type:varchar(200);not null" json:"email"`
	DisplayName         string         `gorm:"type:varchar(150)" json:"display_name"`
	SubscriptionColumns `gorm:"embedded"`
	CreatedAt           time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

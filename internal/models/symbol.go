package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Symbol struct {
	ID         string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Symbol     string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"symbol"`
	Name       string         `gorm:"type:varchar(255)" json:"name"`
	Exchange   string         `gorm:"type:varchar(64);index" json:"exchange"`
	AssetClass string         `gorm:"type:varchar(32);index" json:"asset_class"`
	Enabled    bool           `gorm:"not null;index" json:"enabled"`
	Meta       datatypes.JSON `gorm:"type:jsonb" json:"meta"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Symbol) TableName() string {
	return "symbols"
}

func (s *Symbol) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

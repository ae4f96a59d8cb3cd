package models

import (
	"time"

	"gorm.io/datatypes"
)

// BotSetting stores runtime-configurable settings, e.g. "risk" limits or feature.* switches.
type BotSetting struct {
	Key       string         `gorm:"type:varchar(120);primaryKey" json:"key"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null" json:"value"`
	UpdatedAt time.Time      `gorm:"type:timestamptz;autoUpdateTime;index" json:"updated_at"`
}

func (BotSetting) TableName() string {
	return "bot_settings"
}

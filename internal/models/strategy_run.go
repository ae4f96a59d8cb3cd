package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RunStatusRunning = "running"
	RunStatusOK      = "ok"
	RunStatusError   = "error"
)

// StrategyRun records one execution of a StrategyConfig.
// It moves from running to exactly one of ok or error.
type StrategyRun struct {
	ID         string `gorm:"type:varchar(36);primaryKey" json:"id"`
	StrategyID string `gorm:"type:varchar(36);not null;index" json:"strategy_id"`
	Status     string `gorm:"type:varchar(32);not null;index" json:"status"`

	StartedAt  time.Time  `gorm:"type:timestamptz;not null;index" json:"started_at"`
	FinishedAt *time.Time `gorm:"type:timestamptz" json:"finished_at"`
	Message    string     `gorm:"type:text" json:"message"`

	Signals datatypes.JSON `gorm:"type:jsonb" json:"signals"`
	Orders  datatypes.JSON `gorm:"type:jsonb" json:"orders"`
	Metrics datatypes.JSON `gorm:"type:jsonb" json:"metrics"`
}

func (StrategyRun) TableName() string {
	return "strategy_runs"
}

func (r *StrategyRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r StrategyRun) Terminal() bool {
	return r.Status == RunStatusOK || r.Status == RunStatusError
}

package db

import (
	"alpacabot/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.StrategyConfig{},
		&models.StrategyRun{},
		&models.BotSetting{},
		&models.Symbol{},
	)
}

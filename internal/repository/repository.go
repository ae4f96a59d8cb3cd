package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"

	"alpacabot/internal/models"
)

var (
	// ErrConflict is returned when a unique key (strategy name, symbol ticker) is already taken.
	ErrConflict = errors.New("repository: conflict")
	// ErrRunNotFound is returned by FinalizeRun for an unknown run id.
	ErrRunNotFound = errors.New("repository: run not found")
	// ErrRunNotRunning is returned by FinalizeRun when the run already reached a terminal status.
	ErrRunNotRunning = errors.New("repository: run is not running")
	// ErrStrategyNotFound is returned by CreateRun when the store enforces the
	// strategy foreign key and the strategy is gone.
	ErrStrategyNotFound = errors.New("repository: strategy not found")
)

type StrategyRepository interface {
	CreateStrategy(ctx context.Context, item *models.StrategyConfig) error
	// UpdateStrategy applies the non-nil fields and returns the new row, or nil when id is unknown.
	UpdateStrategy(ctx context.Context, id string, update StrategyUpdate) (*models.StrategyConfig, error)
	DeleteStrategy(ctx context.Context, id string) (bool, error)
	GetStrategy(ctx context.Context, id string) (*models.StrategyConfig, error)
	ListStrategies(ctx context.Context, params ListStrategiesParams) ([]models.StrategyConfig, error)
	CountStrategies(ctx context.Context, params ListStrategiesParams) (int64, error)
}

type RunRepository interface {
	// CreateRun persists a new run. It is committed before the call returns.
	CreateRun(ctx context.Context, item *models.StrategyRun) error
	// FinalizeRun moves a running run to a terminal status and, when TouchStrategy is set,
	// writes the strategy's last_run_at in the same transaction.
	FinalizeRun(ctx context.Context, params FinalizeRunParams) (*models.StrategyRun, error)
	GetRun(ctx context.Context, id string) (*models.StrategyRun, error)
	ListRuns(ctx context.Context, params ListRunsParams) ([]models.StrategyRun, error)
	CountRuns(ctx context.Context, params ListRunsParams) (int64, error)
	ListStaleRuns(ctx context.Context, startedBefore time.Time, limit int) ([]models.StrategyRun, error)
}

type SettingRepository interface {
	GetSetting(ctx context.Context, key string) (*models.BotSetting, error)
	ListSettings(ctx context.Context, params ListSettingsParams) ([]models.BotSetting, error)
	CountSettings(ctx context.Context, params ListSettingsParams) (int64, error)
	UpsertSetting(ctx context.Context, item *models.BotSetting) error
	DeleteSetting(ctx context.Context, key string) (bool, error)
}

type SymbolRepository interface {
	GetSymbol(ctx context.Context, id string) (*models.Symbol, error)
	ListSymbols(ctx context.Context, params ListSymbolsParams) ([]models.Symbol, error)
	CountSymbols(ctx context.Context, params ListSymbolsParams) (int64, error)
	CreateSymbol(ctx context.Context, item *models.Symbol) error
	UpdateSymbol(ctx context.Context, id string, update SymbolUpdate) (*models.Symbol, error)
	DeleteSymbol(ctx context.Context, id string) (bool, error)
	// UpsertSymbols inserts or updates by ticker and returns the number of rows written.
	UpsertSymbols(ctx context.Context, items []models.Symbol) (int, error)
}

// Repository is everything the engine and the HTTP API need from storage.
type Repository interface {
	StrategyRepository
	RunRepository
	SettingRepository
	SymbolRepository

	Ping(ctx context.Context) error
}

type ListStrategiesParams struct {
	Limit   int
	Offset  int
	Enabled *bool
	Type    *string
}

type StrategyUpdate struct {
	Name            *string
	Type            *string
	Enabled         *bool
	IntervalSeconds *int
	Symbols         datatypes.JSON
	Params          datatypes.JSON
}

type FinalizeRunParams struct {
	RunID         string
	StrategyID    string
	Status        string
	Message       string
	FinishedAt    time.Time
	Signals       datatypes.JSON
	Orders        datatypes.JSON
	Metrics       datatypes.JSON
	TouchStrategy bool
}

type ListRunsParams struct {
	Limit      int
	Offset     int
	StrategyID *string
	Status     *string
	Since      *time.Time
	Until      *time.Time
}

type ListSettingsParams struct {
	Limit  int
	Offset int
	Prefix *string
}

type ListSymbolsParams struct {
	Limit   int
	Offset  int
	Query   *string
	Enabled *bool
}

type SymbolUpdate struct {
	Name       *string
	Exchange   *string
	AssetClass *string
	Enabled    *bool
	Meta       datatypes.JSON
}

func NormalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func NormalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

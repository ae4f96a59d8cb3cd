package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alpacabot/internal/models"
	"alpacabot/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ repository.Repository = (*Store)(nil)

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("db unavailable")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// --- strategies --------------------------------------------------------------

func (s *Store) CreateStrategy(ctx context.Context, item *models.StrategyConfig) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) UpdateStrategy(ctx context.Context, id string, update repository.StrategyUpdate) (*models.StrategyConfig, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	values := map[string]any{}
	if update.Name != nil {
		values["name"] = strings.TrimSpace(*update.Name)
	}
	if update.Type != nil {
		values["type"] = strings.TrimSpace(*update.Type)
	}
	if update.Enabled != nil {
		values["enabled"] = *update.Enabled
	}
	if update.IntervalSeconds != nil {
		values["interval_seconds"] = *update.IntervalSeconds
	}
	if update.Symbols != nil {
		values["symbols"] = update.Symbols
	}
	if update.Params != nil {
		values["params"] = update.Params
	}
	if len(values) > 0 {
		values["updated_at"] = time.Now().UTC()
		res := s.db.WithContext(ctx).Model(&models.StrategyConfig{}).Where("id = ?", id).UpdateColumns(values)
		if err := translate(res.Error); err != nil {
			return nil, err
		}
	}
	return s.GetStrategy(ctx, id)
}

func (s *Store) DeleteStrategy(ctx context.Context, id string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Delete(&models.StrategyConfig{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetStrategy(ctx context.Context, id string) (*models.StrategyConfig, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var item models.StrategyConfig
	err := s.db.WithContext(ctx).Model(&models.StrategyConfig{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListStrategies(ctx context.Context, params repository.ListStrategiesParams) ([]models.StrategyConfig, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := strategyFilter(s.db.WithContext(ctx).Model(&models.StrategyConfig{}), params)
	if params.Limit > 0 {
		query = query.Limit(repository.NormalizeLimit(params.Limit, 500))
	}
	var items []models.StrategyConfig
	if err := query.Order("id asc").Offset(repository.NormalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountStrategies(ctx context.Context, params repository.ListStrategiesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := strategyFilter(s.db.WithContext(ctx).Model(&models.StrategyConfig{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func strategyFilter(query *gorm.DB, params repository.ListStrategiesParams) *gorm.DB {
	if params.Enabled != nil {
		query = query.Where("enabled = ?", *params.Enabled)
	}
	if params.Type != nil && strings.TrimSpace(*params.Type) != "" {
		query = query.Where("type = ?", strings.TrimSpace(*params.Type))
	}
	return query
}

// --- runs ----------------------------------------------------------------------

func (s *Store) CreateRun(ctx context.Context, item *models.StrategyRun) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) FinalizeRun(ctx context.Context, params repository.FinalizeRunParams) (*models.StrategyRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	finishedAt := params.FinishedAt.UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.StrategyRun{}).
			Where("id = ? AND status = ?", params.RunID, models.RunStatusRunning).
			UpdateColumns(map[string]any{
				"status":      params.Status,
				"message":     params.Message,
				"finished_at": finishedAt,
				"signals":     params.Signals,
				"orders":      params.Orders,
				"metrics":     params.Metrics,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.StrategyRun{}).Where("id = ?", params.RunID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return repository.ErrRunNotFound
			}
			return repository.ErrRunNotRunning
		}
		if !params.TouchStrategy || params.StrategyID == "" {
			return nil
		}
		return tx.Model(&models.StrategyConfig{}).
			Where("id = ?", params.StrategyID).
			UpdateColumns(map[string]any{
				"last_run_at": finishedAt,
				"updated_at":  finishedAt,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetRun(ctx, params.RunID)
}

func (s *Store) GetRun(ctx context.Context, id string) (*models.StrategyRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var item models.StrategyRun
	err := s.db.WithContext(ctx).Model(&models.StrategyRun{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListRuns(ctx context.Context, params repository.ListRunsParams) ([]models.StrategyRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := runFilter(s.db.WithContext(ctx).Model(&models.StrategyRun{}), params)
	limit := repository.NormalizeLimit(params.Limit, 100)
	offset := repository.NormalizeOffset(params.Offset)
	var items []models.StrategyRun
	if err := query.Order("started_at desc").Order("id desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountRuns(ctx context.Context, params repository.ListRunsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := runFilter(s.db.WithContext(ctx).Model(&models.StrategyRun{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListStaleRuns(ctx context.Context, startedBefore time.Time, limit int) ([]models.StrategyRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.StrategyRun
	err := s.db.WithContext(ctx).
		Model(&models.StrategyRun{}).
		Where("status = ? AND started_at < ?", models.RunStatusRunning, startedBefore.UTC()).
		Order("started_at asc").
		Limit(repository.NormalizeLimit(limit, 200)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func runFilter(query *gorm.DB, params repository.ListRunsParams) *gorm.DB {
	if params.StrategyID != nil && strings.TrimSpace(*params.StrategyID) != "" {
		query = query.Where("strategy_id = ?", strings.TrimSpace(*params.StrategyID))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("started_at >= ?", params.Since.UTC())
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("started_at <= ?", params.Until.UTC())
	}
	return query
}

// --- settings ------------------------------------------------------------------

func (s *Store) GetSetting(ctx context.Context, key string) (*models.BotSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.BotSetting
	err := s.db.WithContext(ctx).Model(&models.BotSetting{}).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSettings(ctx context.Context, params repository.ListSettingsParams) ([]models.BotSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := settingFilter(s.db.WithContext(ctx).Model(&models.BotSetting{}), params)
	limit := repository.NormalizeLimit(params.Limit, 500)
	offset := repository.NormalizeOffset(params.Offset)
	var items []models.BotSetting
	if err := query.Order("key asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSettings(ctx context.Context, params repository.ListSettingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := settingFilter(s.db.WithContext(ctx).Model(&models.BotSetting{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) UpsertSetting(ctx context.Context, item *models.BotSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(item).Error
}

func (s *Store) DeleteSetting(ctx context.Context, key string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).Where("key = ?", strings.TrimSpace(key)).Delete(&models.BotSetting{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func settingFilter(query *gorm.DB, params repository.ListSettingsParams) *gorm.DB {
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where("key LIKE ?", strings.TrimSpace(*params.Prefix)+"%")
	}
	return query
}

// --- symbols -------------------------------------------------------------------

func (s *Store) GetSymbol(ctx context.Context, id string) (*models.Symbol, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var item models.Symbol
	err := s.db.WithContext(ctx).Model(&models.Symbol{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSymbols(ctx context.Context, params repository.ListSymbolsParams) ([]models.Symbol, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := symbolFilter(s.db.WithContext(ctx).Model(&models.Symbol{}), params)
	limit := repository.NormalizeLimit(params.Limit, 200)
	offset := repository.NormalizeOffset(params.Offset)
	var items []models.Symbol
	if err := query.Order("symbol asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSymbols(ctx context.Context, params repository.ListSymbolsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := symbolFilter(s.db.WithContext(ctx).Model(&models.Symbol{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) CreateSymbol(ctx context.Context, item *models.Symbol) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Symbol = strings.ToUpper(strings.TrimSpace(item.Symbol))
	return translate(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) UpdateSymbol(ctx context.Context, id string, update repository.SymbolUpdate) (*models.Symbol, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	values := map[string]any{}
	if update.Name != nil {
		values["name"] = *update.Name
	}
	if update.Exchange != nil {
		values["exchange"] = *update.Exchange
	}
	if update.AssetClass != nil {
		values["asset_class"] = *update.AssetClass
	}
	if update.Enabled != nil {
		values["enabled"] = *update.Enabled
	}
	if update.Meta != nil {
		values["meta"] = update.Meta
	}
	if len(values) > 0 {
		values["updated_at"] = time.Now().UTC()
		if err := s.db.WithContext(ctx).Model(&models.Symbol{}).Where("id = ?", id).UpdateColumns(values).Error; err != nil {
			return nil, err
		}
	}
	return s.GetSymbol(ctx, id)
}

func (s *Store) DeleteSymbol(ctx context.Context, id string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Delete(&models.Symbol{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) UpsertSymbols(ctx context.Context, items []models.Symbol) (int, error) {
	if s == nil || s.db == nil || len(items) == 0 {
		return 0, nil
	}
	rows := make([]models.Symbol, 0, len(items))
	for _, it := range items {
		it.Symbol = strings.ToUpper(strings.TrimSpace(it.Symbol))
		if it.Symbol == "" {
			continue
		}
		rows = append(rows, it)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"exchange",
			"asset_class",
			"enabled",
			"meta",
			"updated_at",
		}),
	}).CreateInBatches(rows, 200).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func symbolFilter(query *gorm.DB, params repository.ListSymbolsParams) *gorm.DB {
	if params.Query != nil && strings.TrimSpace(*params.Query) != "" {
		pattern := "%" + strings.TrimSpace(*params.Query) + "%"
		query = query.Where("symbol ILIKE ? OR name ILIKE ?", pattern, pattern)
	}
	if params.Enabled != nil {
		query = query.Where("enabled = ?", *params.Enabled)
	}
	return query
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repository.ErrConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return repository.ErrStrategyNotFound
	}
	return err
}

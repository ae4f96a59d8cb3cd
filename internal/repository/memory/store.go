// Package memory is an in-process Repository used by the "memory" db driver and by tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"alpacabot/internal/models"
	"alpacabot/internal/repository"
)

type Store struct {
	mu         sync.RWMutex
	strategies map[string]models.StrategyConfig
	runs       map[string]models.StrategyRun
	settings   map[string]models.BotSetting
	symbols    map[string]models.Symbol

	now func() time.Time
}

func New() *Store {
	return &Store{
		strategies: map[string]models.StrategyConfig{},
		runs:       map[string]models.StrategyRun{},
		settings:   map[string]models.BotSetting{},
		symbols:    map[string]models.Symbol{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ repository.Repository = (*Store)(nil)

func (s *Store) Ping(ctx context.Context) error { return nil }

// --- strategies --------------------------------------------------------------

func (s *Store) CreateStrategy(ctx context.Context, item *models.StrategyConfig) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.strategies {
		if existing.Name == item.Name {
			return repository.ErrConflict
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if _, ok := s.strategies[item.ID]; ok {
		return repository.ErrConflict
	}
	if len(item.Symbols) == 0 {
		item.Symbols = datatypes.JSON("[]")
	}
	if len(item.Params) == 0 {
		item.Params = datatypes.JSON("{}")
	}
	now := s.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	s.strategies[item.ID] = cloneStrategy(*item)
	return nil
}

func (s *Store) UpdateStrategy(ctx context.Context, id string, update repository.StrategyUpdate) (*models.StrategyConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.strategies[id]
	if !ok {
		return nil, nil
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		for otherID, other := range s.strategies {
			if otherID != id && other.Name == name {
				return nil, repository.ErrConflict
			}
		}
		item.Name = name
	}
	if update.Type != nil {
		item.Type = strings.TrimSpace(*update.Type)
	}
	if update.Enabled != nil {
		item.Enabled = *update.Enabled
	}
	if update.IntervalSeconds != nil {
		item.IntervalSeconds = *update.IntervalSeconds
	}
	if update.Symbols != nil {
		item.Symbols = cloneJSON(update.Symbols)
	}
	if update.Params != nil {
		item.Params = cloneJSON(update.Params)
	}
	item.UpdatedAt = s.now()
	s.strategies[id] = item
	out := cloneStrategy(item)
	return &out, nil
}

func (s *Store) DeleteStrategy(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.strategies[id]; !ok {
		return false, nil
	}
	delete(s.strategies, id)
	for runID, run := range s.runs {
		if run.StrategyID == id {
			delete(s.runs, runID)
		}
	}
	return true, nil
}

func (s *Store) GetStrategy(ctx context.Context, id string) (*models.StrategyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.strategies[id]
	if !ok {
		return nil, nil
	}
	out := cloneStrategy(item)
	return &out, nil
}

func (s *Store) ListStrategies(ctx context.Context, params repository.ListStrategiesParams) ([]models.StrategyConfig, error) {
	s.mu.RLock()
	items := s.filterStrategies(params)
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	limit := len(items)
	if params.Limit > 0 {
		limit = repository.NormalizeLimit(params.Limit, 500)
	}
	return page(items, limit, params.Offset), nil
}

func (s *Store) CountStrategies(ctx context.Context, params repository.ListStrategiesParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterStrategies(params))), nil
}

func (s *Store) filterStrategies(params repository.ListStrategiesParams) []models.StrategyConfig {
	out := make([]models.StrategyConfig, 0, len(s.strategies))
	for _, it := range s.strategies {
		if params.Enabled != nil && it.Enabled != *params.Enabled {
			continue
		}
		if params.Type != nil && *params.Type != "" && it.Type != *params.Type {
			continue
		}
		out = append(out, cloneStrategy(it))
	}
	return out
}

// --- runs ----------------------------------------------------------------------

func (s *Store) CreateRun(ctx context.Context, item *models.StrategyRun) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if _, ok := s.runs[item.ID]; ok {
		return repository.ErrConflict
	}
	s.runs[item.ID] = cloneRun(*item)
	return nil
}

func (s *Store) FinalizeRun(ctx context.Context, params repository.FinalizeRunParams) (*models.StrategyRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[params.RunID]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	if run.Status != models.RunStatusRunning {
		return nil, repository.ErrRunNotRunning
	}
	finishedAt := params.FinishedAt.UTC()
	run.Status = params.Status
	run.Message = params.Message
	run.FinishedAt = &finishedAt
	run.Signals = cloneJSON(params.Signals)
	run.Orders = cloneJSON(params.Orders)
	run.Metrics = cloneJSON(params.Metrics)
	s.runs[run.ID] = run
	if params.TouchStrategy {
		if cfg, ok := s.strategies[params.StrategyID]; ok {
			last := finishedAt
			cfg.LastRunAt = &last
			cfg.UpdatedAt = finishedAt
			s.strategies[cfg.ID] = cfg
		}
	}
	out := cloneRun(run)
	return &out, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*models.StrategyRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	out := cloneRun(run)
	return &out, nil
}

func (s *Store) ListRuns(ctx context.Context, params repository.ListRunsParams) ([]models.StrategyRun, error) {
	s.mu.RLock()
	items := s.filterRuns(params)
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool {
		if items[i].StartedAt.Equal(items[j].StartedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].StartedAt.After(items[j].StartedAt)
	})
	return page(items, repository.NormalizeLimit(params.Limit, 100), params.Offset), nil
}

func (s *Store) CountRuns(ctx context.Context, params repository.ListRunsParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterRuns(params))), nil
}

func (s *Store) ListStaleRuns(ctx context.Context, startedBefore time.Time, limit int) ([]models.StrategyRun, error) {
	s.mu.RLock()
	out := make([]models.StrategyRun, 0)
	for _, run := range s.runs {
		if run.Status == models.RunStatusRunning && run.StartedAt.Before(startedBefore) {
			out = append(out, cloneRun(run))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return page(out, repository.NormalizeLimit(limit, 200), 0), nil
}

func (s *Store) filterRuns(params repository.ListRunsParams) []models.StrategyRun {
	out := make([]models.StrategyRun, 0, len(s.runs))
	for _, run := range s.runs {
		if params.StrategyID != nil && *params.StrategyID != "" && run.StrategyID != *params.StrategyID {
			continue
		}
		if params.Status != nil && *params.Status != "" && run.Status != *params.Status {
			continue
		}
		if params.Since != nil && !params.Since.IsZero() && run.StartedAt.Before(*params.Since) {
			continue
		}
		if params.Until != nil && !params.Until.IsZero() && run.StartedAt.After(*params.Until) {
			continue
		}
		out = append(out, cloneRun(run))
	}
	return out
}

// --- settings ------------------------------------------------------------------

func (s *Store) GetSetting(ctx context.Context, key string) (*models.BotSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.settings[strings.TrimSpace(key)]
	if !ok {
		return nil, nil
	}
	item.Value = cloneJSON(item.Value)
	return &item, nil
}

func (s *Store) ListSettings(ctx context.Context, params repository.ListSettingsParams) ([]models.BotSetting, error) {
	s.mu.RLock()
	items := s.filterSettings(params)
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return page(items, repository.NormalizeLimit(params.Limit, 500), params.Offset), nil
}

func (s *Store) CountSettings(ctx context.Context, params repository.ListSettingsParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterSettings(params))), nil
}

func (s *Store) UpsertSetting(ctx context.Context, item *models.BotSetting) error {
	if item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *item
	stored.Value = cloneJSON(item.Value)
	s.settings[item.Key] = stored
	return nil
}

func (s *Store) DeleteSetting(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = strings.TrimSpace(key)
	if _, ok := s.settings[key]; !ok {
		return false, nil
	}
	delete(s.settings, key)
	return true, nil
}

func (s *Store) filterSettings(params repository.ListSettingsParams) []models.BotSetting {
	out := make([]models.BotSetting, 0, len(s.settings))
	for _, it := range s.settings {
		if params.Prefix != nil && !strings.HasPrefix(it.Key, strings.TrimSpace(*params.Prefix)) {
			continue
		}
		it.Value = cloneJSON(it.Value)
		out = append(out, it)
	}
	return out
}

// --- symbols -------------------------------------------------------------------

func (s *Store) GetSymbol(ctx context.Context, id string) (*models.Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.symbols[id]
	if !ok {
		return nil, nil
	}
	item.Meta = cloneJSON(item.Meta)
	return &item, nil
}

func (s *Store) ListSymbols(ctx context.Context, params repository.ListSymbolsParams) ([]models.Symbol, error) {
	s.mu.RLock()
	items := s.filterSymbols(params)
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].Symbol < items[j].Symbol })
	return page(items, repository.NormalizeLimit(params.Limit, 200), params.Offset), nil
}

func (s *Store) CountSymbols(ctx context.Context, params repository.ListSymbolsParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterSymbols(params))), nil
}

func (s *Store) CreateSymbol(ctx context.Context, item *models.Symbol) error {
	if item == nil {
		return nil
	}
	item.Symbol = strings.ToUpper(strings.TrimSpace(item.Symbol))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.symbols {
		if existing.Symbol == item.Symbol {
			return repository.ErrConflict
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := s.now()
	item.CreatedAt = now
	item.UpdatedAt = now
	stored := *item
	stored.Meta = cloneJSON(item.Meta)
	s.symbols[item.ID] = stored
	return nil
}

func (s *Store) UpdateSymbol(ctx context.Context, id string, update repository.SymbolUpdate) (*models.Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.symbols[id]
	if !ok {
		return nil, nil
	}
	if update.Name != nil {
		item.Name = *update.Name
	}
	if update.Exchange != nil {
		item.Exchange = *update.Exchange
	}
	if update.AssetClass != nil {
		item.AssetClass = *update.AssetClass
	}
	if update.Enabled != nil {
		item.Enabled = *update.Enabled
	}
	if update.Meta != nil {
		item.Meta = cloneJSON(update.Meta)
	}
	item.UpdatedAt = s.now()
	s.symbols[id] = item
	out := item
	out.Meta = cloneJSON(item.Meta)
	return &out, nil
}

func (s *Store) DeleteSymbol(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.symbols[id]; !ok {
		return false, nil
	}
	delete(s.symbols, id)
	return true, nil
}

func (s *Store) UpsertSymbols(ctx context.Context, items []models.Symbol) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byTicker := make(map[string]string, len(s.symbols))
	for id, it := range s.symbols {
		byTicker[it.Symbol] = id
	}
	now := s.now()
	written := 0
	for _, it := range items {
		it.Symbol = strings.ToUpper(strings.TrimSpace(it.Symbol))
		if it.Symbol == "" {
			continue
		}
		it.Meta = cloneJSON(it.Meta)
		if id, ok := byTicker[it.Symbol]; ok {
			existing := s.symbols[id]
			existing.Name = it.Name
			existing.Exchange = it.Exchange
			existing.AssetClass = it.AssetClass
			existing.Enabled = it.Enabled
			existing.Meta = it.Meta
			existing.UpdatedAt = now
			s.symbols[id] = existing
		} else {
			if it.ID == "" {
				it.ID = uuid.NewString()
			}
			it.CreatedAt = now
			it.UpdatedAt = now
			s.symbols[it.ID] = it
			byTicker[it.Symbol] = it.ID
		}
		written++
	}
	return written, nil
}

func (s *Store) filterSymbols(params repository.ListSymbolsParams) []models.Symbol {
	q := ""
	if params.Query != nil {
		q = strings.ToLower(strings.TrimSpace(*params.Query))
	}
	out := make([]models.Symbol, 0, len(s.symbols))
	for _, it := range s.symbols {
		if q != "" && !strings.Contains(strings.ToLower(it.Symbol), q) && !strings.Contains(strings.ToLower(it.Name), q) {
			continue
		}
		if params.Enabled != nil && it.Enabled != *params.Enabled {
			continue
		}
		it.Meta = cloneJSON(it.Meta)
		out = append(out, it)
	}
	return out
}

// --- helpers -------------------------------------------------------------------

func page[T any](items []T, limit, offset int) []T {
	offset = repository.NormalizeOffset(offset)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func cloneJSON(v datatypes.JSON) datatypes.JSON {
	if v == nil {
		return nil
	}
	out := make(datatypes.JSON, len(v))
	copy(out, v)
	return out
}

func cloneStrategy(s models.StrategyConfig) models.StrategyConfig {
	s.Symbols = cloneJSON(s.Symbols)
	s.Params = cloneJSON(s.Params)
	if s.LastRunAt != nil {
		t := *s.LastRunAt
		s.LastRunAt = &t
	}
	s.Runs = nil
	return s
}

func cloneRun(r models.StrategyRun) models.StrategyRun {
	r.Signals = cloneJSON(r.Signals)
	r.Orders = cloneJSON(r.Orders)
	r.Metrics = cloneJSON(r.Metrics)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		r.FinishedAt = &t
	}
	return r
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"

	"alpacabot/internal/models"
	"alpacabot/internal/repository"
)

const (
	FeatureScheduler = "feature.scheduler"
	FeatureReaper    = "feature.reaper"
)

var (
	ErrInvalidSettingKey   = errors.New("setting key is required")
	ErrInvalidSettingValue = errors.New("setting value must be valid JSON")
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureScheduler: true,
		FeatureReaper:    true,
	}
}

// SettingsService owns bot_settings: feature switches and free-form JSON values such as "risk".
type SettingsService struct {
	Repo repository.SettingRepository
	Now  func() time.Time
}

func (s *SettingsService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// EnsureDefaultSwitches writes missing feature switches. Existing values are left alone.
func (s *SettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSetting(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		if err := s.Repo.UpsertSetting(ctx, &models.BotSetting{Key: key, Value: datatypes.JSON(raw), UpdatedAt: s.now()}); err != nil {
			return err
		}
	}
	return nil
}

func (s *SettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSetting(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	raw, _ := json.Marshal(enabled)
	_, err := s.Put(ctx, key, raw)
	return err
}

// Put replaces the value stored under key. An empty value stores {}.
func (s *SettingsService) Put(ctx context.Context, key string, value json.RawMessage) (*models.BotSetting, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("settings: repository unavailable")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidSettingKey
	}
	value = bytes.TrimSpace(value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		value = json.RawMessage("{}")
	}
	if !json.Valid(value) {
		return nil, ErrInvalidSettingValue
	}
	item := &models.BotSetting{Key: key, Value: datatypes.JSON(value), UpdatedAt: s.now()}
	if err := s.Repo.UpsertSetting(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Patch shallow-merges an object into the stored object, creating the row when missing.
// When either side is not an object the patch replaces the stored value.
func (s *SettingsService) Patch(ctx context.Context, key string, patch json.RawMessage) (*models.BotSetting, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("settings: repository unavailable")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidSettingKey
	}
	if !json.Valid(patch) {
		return nil, ErrInvalidSettingValue
	}
	existing, err := s.Repo.GetSetting(ctx, key)
	if err != nil {
		return nil, err
	}
	var incoming map[string]json.RawMessage
	if err := json.Unmarshal(patch, &incoming); err != nil || incoming == nil {
		return s.Put(ctx, key, patch)
	}
	merged := map[string]json.RawMessage{}
	if existing != nil && len(existing.Value) > 0 {
		if err := json.Unmarshal(existing.Value, &merged); err != nil || merged == nil {
			merged = map[string]json.RawMessage{}
		}
	}
	for k, v := range incoming {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return s.Put(ctx, key, raw)
}

// Bulk puts every item and returns the stored rows ordered by key.
func (s *SettingsService) Bulk(ctx context.Context, items map[string]json.RawMessage) ([]models.BotSetting, error) {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]models.BotSetting, 0, len(keys))
	for _, k := range keys {
		item, err := s.Put(ctx, k, items[k])
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, nil
}

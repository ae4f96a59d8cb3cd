package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"alpacabot/internal/events"
	"alpacabot/internal/models"
	"alpacabot/internal/repository"
)

// Dispatcher hands a strategy id to an execution unit without waiting for it.
type Dispatcher interface {
	Dispatch(strategyID string) error
}

// Due reports whether s should run at now: it never ran, or its interval has elapsed.
func Due(s models.StrategyConfig, now time.Time) bool {
	if s.LastRunAt == nil {
		return true
	}
	return !now.Before(s.LastRunAt.Add(s.Interval()))
}

type TickResult struct {
	At         time.Time `json:"at"`
	Paused     bool      `json:"paused"`
	Enabled    int       `json:"enabled"`
	Due        int       `json:"due"`
	Dispatched []string  `json:"dispatched"`
	// Skipped maps strategy id to the reason it was due but not dispatched.
	Skipped map[string]string `json:"skipped"`
}

// Scheduler decides on each tick which enabled strategies are due and dispatches them.
type Scheduler struct {
	Repo       repository.StrategyRepository
	Dispatcher Dispatcher
	Settings   *SettingsService
	Events     events.Publisher
	Logger     *zap.Logger
	Now        func() time.Time
}

// Tick dispatches every due strategy once, in id order, and returns without
// waiting for the runs. A store failure is returned and nothing is dispatched.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	res := TickResult{At: now, Dispatched: make([]string, 0), Skipped: map[string]string{}}
	if s.Repo == nil || s.Dispatcher == nil {
		return res, errors.New("scheduler: not configured")
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if !s.Settings.IsEnabled(ctx, FeatureScheduler, true) {
		res.Paused = true
		logger.Debug("scheduler: paused by feature switch")
		return res, nil
	}

	enabled := true
	items, err := s.Repo.ListStrategies(ctx, repository.ListStrategiesParams{Enabled: &enabled})
	if err != nil {
		return res, fmt.Errorf("scheduler: load enabled strategies: %w", err)
	}
	res.Enabled = len(items)
	for _, item := range items {
		if !item.Enabled || !Due(item, now) {
			continue
		}
		res.Due++
		if err := s.Dispatcher.Dispatch(item.ID); err != nil {
			res.Skipped[item.ID] = err.Error()
			if errors.Is(err, ErrAlreadyQueued) {
				logger.Debug("scheduler: strategy still in flight", zap.String("strategy_id", item.ID))
			} else {
				logger.Warn("scheduler: dispatch failed", zap.String("strategy_id", item.ID), zap.Error(err))
			}
			continue
		}
		res.Dispatched = append(res.Dispatched, item.ID)
	}

	if s.Events != nil {
		s.Events.Publish(ctx, events.Event{
			Type: events.TypeTick,
			At:   now,
			Data: map[string]any{
				"enabled":    res.Enabled,
				"due":        res.Due,
				"dispatched": len(res.Dispatched),
				"skipped":    len(res.Skipped),
			},
		})
	}
	if res.Due > 0 {
		logger.Info("scheduler: tick",
			zap.Int("enabled", res.Enabled),
			zap.Int("due", res.Due),
			zap.Int("dispatched", len(res.Dispatched)),
			zap.Int("skipped", len(res.Skipped)),
		)
	}
	return res, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"alpacabot/internal/events"
	"alpacabot/internal/models"
	"alpacabot/internal/repository"
)

const ReapedMessage = "run timed out / orphaned"

// Reaper fails runs left in running status longer than StaleAfter, e.g. after a crash.
type Reaper struct {
	Repo       repository.RunRepository
	Settings   *SettingsService
	Events     events.Publisher
	Logger     *zap.Logger
	StaleAfter time.Duration
	BatchSize  int
	Now        func() time.Time
}

// Sweep finalizes stale runs as error and returns how many it reaped.
// Runs finalized concurrently by their owner are skipped.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	if r.Repo == nil {
		return 0, errors.New("reaper: repository unavailable")
	}
	if !r.Settings.IsEnabled(ctx, FeatureReaper, true) {
		return 0, nil
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now().UTC()
	}
	staleAfter := r.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	stale, err := r.Repo.ListStaleRuns(ctx, now.Add(-staleAfter), r.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("reaper: list stale runs: %w", err)
	}
	reaped := 0
	for _, run := range stale {
		final, err := r.Repo.FinalizeRun(ctx, repository.FinalizeRunParams{
			RunID:      run.ID,
			StrategyID: run.StrategyID,
			Status:     models.RunStatusError,
			Message:    ReapedMessage,
			FinishedAt: now,
			Signals:    datatypes.JSON(`{"count":0,"items":[]}`),
			Orders:     datatypes.JSON(`[]`),
			Metrics:    datatypes.JSON(`{"orders_placed":0,"reaped":true}`),
		})
		if errors.Is(err, repository.ErrRunNotRunning) || errors.Is(err, repository.ErrRunNotFound) {
			continue
		}
		if err != nil {
			return reaped, fmt.Errorf("reaper: finalize run %s: %w", run.ID, err)
		}
		reaped++
		logger.Warn("reaper: run reaped",
			zap.String("run_id", run.ID),
			zap.String("strategy_id", run.StrategyID),
			zap.Time("started_at", run.StartedAt),
		)
		if r.Events != nil && final != nil {
			r.Events.Publish(ctx, events.RunEvent(*final))
		}
	}
	return reaped, nil
}

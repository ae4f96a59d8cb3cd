package service

import (
	"context"

	"alpacabot/internal/models"
	"alpacabot/internal/repository"
)

type Overview struct {
	StrategiesTotal   int64 `json:"strategies_total"`
	StrategiesEnabled int64 `json:"strategies_enabled"`
	RunsTotal         int64 `json:"runs_total"`
	RunsErrors        int64 `json:"runs_errors"`
	RunsRunning       int64 `json:"runs_running"`
}

type MetricsService struct {
	Repo repository.Repository
}

func (s *MetricsService) Overview(ctx context.Context) (Overview, error) {
	var out Overview
	var err error
	if out.StrategiesTotal, err = s.Repo.CountStrategies(ctx, repository.ListStrategiesParams{}); err != nil {
		return out, err
	}
	enabled := true
	if out.StrategiesEnabled, err = s.Repo.CountStrategies(ctx, repository.ListStrategiesParams{Enabled: &enabled}); err != nil {
		return out, err
	}
	if out.RunsTotal, err = s.Repo.CountRuns(ctx, repository.ListRunsParams{}); err != nil {
		return out, err
	}
	status := models.RunStatusError
	if out.RunsErrors, err = s.Repo.CountRuns(ctx, repository.ListRunsParams{Status: &status}); err != nil {
		return out, err
	}
	running := models.RunStatusRunning
	if out.RunsRunning, err = s.Repo.CountRuns(ctx, repository.ListRunsParams{Status: &running}); err != nil {
		return out, err
	}
	return out, nil
}

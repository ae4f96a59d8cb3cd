package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"alpacabot/internal/events"
	"alpacabot/internal/execution"
	"alpacabot/internal/models"
	"alpacabot/internal/repository"
	"alpacabot/internal/risk"
	"alpacabot/internal/strategy"
)

const finalizeTimeout = 10 * time.Second

// ConfigError is a run failure caused by the strategy's configuration rather than
// by the market or the broker. It is recorded and not retried.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// RunRepository is the storage a Runner needs.
type RunRepository interface {
	repository.StrategyRepository
	repository.RunRepository
}

// Runner is the execution unit: one call runs one strategy end to end and
// always leaves its run in a terminal status.
type Runner struct {
	Repo             RunRepository
	Registry         *strategy.Registry
	Executor         *execution.Executor
	Risk             *risk.Manager
	Events           events.Publisher
	Logger           *zap.Logger
	RunTimeout       time.Duration
	StrategyDefaults map[string]map[string]any
	Now              func() time.Time
}

// runState collects what a run produced before it is finalized.
type runState struct {
	touch   bool
	signals []strategy.Signal
	result  execution.Result
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Run adapts Execute to RunFunc for the dispatch pool.
func (r *Runner) Run(ctx context.Context, strategyID string) {
	_, err := r.Execute(ctx, strategyID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrStrategyNotFound):
		r.logger().Warn("runner: strategy deleted before its run was created", zap.String("strategy_id", strategyID), zap.Error(err))
	case errors.Is(err, repository.ErrRunNotRunning):
		r.logger().Warn("runner: run already finalized elsewhere, outcome dropped", zap.String("strategy_id", strategyID), zap.Error(err))
	default:
		r.logger().Error("runner: run not recorded", zap.String("strategy_id", strategyID), zap.Error(err))
	}
}

// Execute creates a running run, evaluates and executes the strategy, and
// finalizes the run as ok or error. The returned error is only about
// recording the run; strategy failures are reported on the run itself.
func (r *Runner) Execute(ctx context.Context, strategyID string) (*models.StrategyRun, error) {
	if r.Repo == nil {
		return nil, errors.New("runner: repository unavailable")
	}
	startedAt := r.now()
	run := &models.StrategyRun{
		StrategyID: strategyID,
		Status:     models.RunStatusRunning,
		StartedAt:  startedAt,
	}
	if err := r.Repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	logger := r.logger().With(zap.String("strategy_id", strategyID), zap.String("run_id", run.ID))

	state := &runState{}
	runErr := r.guard(ctx, strategyID, state, logger)

	finishedAt := r.now()
	status := models.RunStatusOK
	message := ""
	if runErr != nil {
		status = models.RunStatusError
		message = runErr.Error()
		logger.Warn("runner: run failed", zap.Error(runErr))
	}

	// The run context may already be expired; the outcome is still recorded.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	final, err := r.Repo.FinalizeRun(fctx, repository.FinalizeRunParams{
		RunID:         run.ID,
		StrategyID:    strategyID,
		Status:        status,
		Message:       message,
		FinishedAt:    finishedAt,
		Signals:       mustJSON(map[string]any{"count": len(state.signals), "items": nonNilSignals(state.signals)}),
		Orders:        mustJSON(nonNilOrders(state.result.Orders)),
		Metrics:       mustJSON(runMetrics(state, finishedAt.Sub(startedAt))),
		TouchStrategy: state.touch,
	})
	if err != nil {
		return run, fmt.Errorf("finalize run %s: %w", run.ID, err)
	}
	if final == nil {
		final = run
	}
	if r.Events != nil {
		r.Events.Publish(fctx, events.RunEvent(*final))
	}
	logger.Info("runner: run finished",
		zap.String("status", final.Status),
		zap.Int("signals", len(state.signals)),
		zap.Int("orders", len(state.result.Orders)),
	)
	return final, nil
}

// guard turns a panic inside the run into an error.
func (r *Runner) guard(ctx context.Context, strategyID string, state *runState, logger *zap.Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("runner: panic", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.evaluate(ctx, strategyID, state)
}

func (r *Runner) evaluate(ctx context.Context, strategyID string, state *runState) error {
	cfg, err := r.Repo.GetStrategy(ctx, strategyID)
	if err != nil {
		return fmt.Errorf("load strategy: %w", err)
	}
	if cfg == nil || !cfg.Enabled {
		return &ConfigError{Message: "Strategy disabled or missing"}
	}
	state.touch = true

	if r.Registry == nil {
		return &ConfigError{Message: "Unknown strategy type: " + cfg.Type}
	}
	impl, ok := r.Registry.Build(cfg.Type)
	if !ok {
		return &ConfigError{Message: "Unknown strategy type: " + cfg.Type}
	}

	runCtx := ctx
	if r.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.RunTimeout)
		defer cancel()
	}

	params := strategy.MergeParams(impl.DefaultParams(), r.StrategyDefaults[cfg.Type], cfg.ParamMap())
	signals, err := impl.Evaluate(runCtx, models.NormalizeSymbols(cfg.SymbolList()), params)
	if err != nil {
		return err
	}
	state.signals = signals

	limits := risk.DefaultLimits()
	if r.Risk != nil {
		limits = r.Risk.Limits(runCtx)
	}
	if r.Executor == nil {
		if len(signals) == 0 {
			return nil
		}
		return errors.New("runner: executor unavailable")
	}
	return r.Executor.ExecuteInto(runCtx, signals, limits, &state.result)
}

func runMetrics(state *runState, elapsed time.Duration) map[string]any {
	return map[string]any{
		"orders_placed":    len(state.result.Orders),
		"signals_total":    len(state.signals),
		"signals_rejected": len(state.result.Rejected),
		"signals_capped":   state.result.Capped,
		"rejected":         nonNilRejections(state.result.Rejected),
		"duration_ms":      elapsed.Milliseconds(),
	}
}

// nonNilSignals copies v for recording; non-finite quantities, which JSON
// cannot carry, are recorded as 0.
func nonNilSignals(v []strategy.Signal) []strategy.Signal {
	out := make([]strategy.Signal, len(v))
	for i, sig := range v {
		if math.IsNaN(sig.Qty) || math.IsInf(sig.Qty, 0) {
			sig.Qty = 0
		}
		out[i] = sig
	}
	return out
}

func nonNilOrders(v []execution.Order) []execution.Order {
	if v == nil {
		return []execution.Order{}
	}
	return v
}

func nonNilRejections(v []execution.Rejection) []execution.Rejection {
	if v == nil {
		return []execution.Rejection{}
	}
	return v
}

func mustJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(raw)
}

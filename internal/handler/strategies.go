package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"alpacabot/internal/models"
	"alpacabot/internal/repository"
	"alpacabot/internal/service"
	"alpacabot/internal/strategy"
)

type StrategyHandler struct {
	Repo       repository.StrategyRepository
	Registry   *strategy.Registry
	Dispatcher service.Dispatcher
}

type strategyRequest struct {
	Name            *string        `json:"name"`
	Type            *string        `json:"type"`
	Enabled         *bool          `json:"enabled"`
	IntervalSeconds *int           `json:"interval_seconds"`
	Symbols         []string       `json:"symbols"`
	Params          map[string]any `json:"params"`
}

type strategyType struct {
	Key           string          `json:"key"`
	Name          string          `json:"name"`
	DefaultParams strategy.Params `json:"default_params"`
}

func (h *StrategyHandler) Register(r *gin.Engine) {
	g := r.Group("/api/strategies")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/types", h.types)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/run", h.runNow)
}

// @Summary List strategies
// @Tags strategies
// @Param enabled query bool false "filter by enabled"
// @Param type query string false "filter by type"
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Success 200 {object} map[string]any
// @Router /api/strategies [get]
func (h *StrategyHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := clampedIntQuery(c, "limit", 100, 1, 500)
	offset := intQuery(c, "offset", 0)
	params := repository.ListStrategiesParams{
		Limit:   limit,
		Offset:  offset,
		Enabled: boolQueryPtr(c, "enabled"),
		Type:    strQueryPtr(c, "type"),
	}
	items, err := h.Repo.ListStrategies(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountStrategies(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary List strategy types
// @Tags strategies
// @Success 200 {object} map[string]any
// @Router /api/strategies/types [get]
func (h *StrategyHandler) types(c *gin.Context) {
	out := make([]strategyType, 0)
	for _, key := range h.Registry.Keys() {
		impl, ok := h.Registry.Build(key)
		if !ok {
			continue
		}
		out = append(out, strategyType{Key: key, Name: impl.Name(), DefaultParams: impl.DefaultParams()})
	}
	Ok(c, out, nil)
}

// @Summary Create strategy
// @Tags strategies
// @Accept json
// @Param body body strategyRequest true "strategy"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/strategies [post]
func (h *StrategyHandler) create(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		Error(c, http.StatusBadRequest, "name required", nil)
		return
	}
	if req.Type == nil || strings.TrimSpace(*req.Type) == "" {
		Error(c, http.StatusBadRequest, "type required", nil)
		return
	}
	if msg := h.validate(req); msg != "" {
		Error(c, http.StatusBadRequest, msg, nil)
		return
	}
	item := &models.StrategyConfig{
		Name:            strings.TrimSpace(*req.Name),
		Type:            strings.TrimSpace(*req.Type),
		IntervalSeconds: models.DefaultIntervalSeconds,
		Symbols:         symbolsJSON(req.Symbols),
		Params:          objectJSON(req.Params),
	}
	if req.Enabled != nil {
		item.Enabled = *req.Enabled
	}
	if req.IntervalSeconds != nil {
		item.IntervalSeconds = *req.IntervalSeconds
	}
	if err := h.Repo.CreateStrategy(c.Request.Context(), item); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			Error(c, http.StatusConflict, "Strategy name already exists", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Get strategy
// @Tags strategies
// @Param id path string true "strategy id"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/strategies/{id} [get]
func (h *StrategyHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	item, err := h.Repo.GetStrategy(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "strategy not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Update strategy
// @Description Only the fields present in the body are changed.
// @Tags strategies
// @Accept json
// @Param id path string true "strategy id"
// @Param body body strategyRequest true "fields to change"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/strategies/{id} [patch]
func (h *StrategyHandler) update(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		Error(c, http.StatusBadRequest, "name must not be empty", nil)
		return
	}
	if msg := h.validate(req); msg != "" {
		Error(c, http.StatusBadRequest, msg, nil)
		return
	}
	update := repository.StrategyUpdate{
		Enabled:         req.Enabled,
		IntervalSeconds: req.IntervalSeconds,
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		update.Name = &name
	}
	if req.Type != nil {
		typ := strings.TrimSpace(*req.Type)
		update.Type = &typ
	}
	if req.Symbols != nil {
		update.Symbols = symbolsJSON(req.Symbols)
	}
	if req.Params != nil {
		update.Params = objectJSON(req.Params)
	}
	item, err := h.Repo.UpdateStrategy(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			Error(c, http.StatusConflict, "Strategy name already exists", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "strategy not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Delete strategy
// @Description Deletes the strategy and its run history.
// @Tags strategies
// @Param id path string true "strategy id"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/strategies/{id} [delete]
func (h *StrategyHandler) delete(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ok, err := h.Repo.DeleteStrategy(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if !ok {
		Error(c, http.StatusNotFound, "strategy not found", nil)
		return
	}
	Ok(c, gin.H{"ok": true}, nil)
}

// @Summary Run strategy now
// @Description Queues the strategy for immediate execution. The run is recorded like a scheduled one.
// @Tags strategies
// @Param id path string true "strategy id"
// @Success 202 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /api/strategies/{id}/run [post]
func (h *StrategyHandler) runNow(c *gin.Context) {
	if h.Repo == nil || h.Dispatcher == nil {
		Error(c, http.StatusInternalServerError, "dispatcher unavailable", nil)
		return
	}
	item, err := h.Repo.GetStrategy(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "strategy not found", nil)
		return
	}
	if !item.Enabled {
		Error(c, http.StatusConflict, "strategy is disabled", nil)
		return
	}
	switch err := h.Dispatcher.Dispatch(item.ID); {
	case err == nil:
		Accepted(c, "queued", gin.H{"strategy_id": item.ID})
	case errors.Is(err, service.ErrAlreadyQueued):
		Error(c, http.StatusConflict, err.Error(), nil)
	default:
		Error(c, http.StatusServiceUnavailable, err.Error(), nil)
	}
}

// validate checks the optional fields shared by create and update.
func (h *StrategyHandler) validate(req strategyRequest) string {
	if req.Name != nil && len(strings.TrimSpace(*req.Name)) > 120 {
		return "name must be at most 120 characters"
	}
	if req.Type != nil && h.Registry != nil && !h.Registry.Has(strings.TrimSpace(*req.Type)) {
		return fmt.Sprintf("unknown strategy type %q", strings.TrimSpace(*req.Type))
	}
	if req.IntervalSeconds != nil {
		v := *req.IntervalSeconds
		if v < models.MinIntervalSeconds || v > models.MaxIntervalSeconds {
			return fmt.Sprintf("interval_seconds must be between %d and %d", models.MinIntervalSeconds, models.MaxIntervalSeconds)
		}
	}
	return ""
}

func symbolsJSON(symbols []string) datatypes.JSON {
	raw, _ := json.Marshal(models.NormalizeSymbols(symbols))
	return datatypes.JSON(raw)
}

// objectJSON encodes a JSON object; nil becomes {}.
func objectJSON(v map[string]any) datatypes.JSON {
	if v == nil {
		v = map[string]any{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}

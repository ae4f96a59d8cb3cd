package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alpacabot/internal/models"
	"alpacabot/internal/repository"
)

type RunHandler struct {
	Repo repository.RunRepository
}

func (h *RunHandler) Register(r *gin.Engine) {
	g := r.Group("/api/runs")
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

// @Summary List runs
// @Description Newest first.
// @Tags runs
// @Param limit query int false "1..500, default 100"
// @Param offset query int false "offset"
// @Param status query string false "running, ok or error"
// @Param strategy_id query string false "strategy id"
// @Param since query string false "RFC 3339 lower bound on started_at"
// @Param until query string false "RFC 3339 upper bound on started_at"
// @Success 200 {object} map[string]any
// @Router /api/runs [get]
func (h *RunHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := clampedIntQuery(c, "limit", 100, 1, 500)
	offset := intQuery(c, "offset", 0)
	since, ok := timeQueryPtr(c, "since")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid since", nil)
		return
	}
	until, ok := timeQueryPtr(c, "until")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid until", nil)
		return
	}
	status := strQueryPtr(c, "status")
	if status != nil {
		switch *status {
		case models.RunStatusRunning, models.RunStatusOK, models.RunStatusError:
		default:
			Error(c, http.StatusBadRequest, "invalid status", nil)
			return
		}
	}
	params := repository.ListRunsParams{
		Limit:      limit,
		Offset:     offset,
		StrategyID: strQueryPtr(c, "strategy_id"),
		Status:     status,
		Since:      since,
		Until:      until,
	}
	items, err := h.Repo.ListRuns(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountRuns(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get run
// @Tags runs
// @Param id path string true "run id"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/runs/{id} [get]
func (h *RunHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	item, err := h.Repo.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "run not found", nil)
		return
	}
	Ok(c, item, nil)
}

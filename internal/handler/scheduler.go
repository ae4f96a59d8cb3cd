package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alpacabot/internal/service"
)

// SchedulerHandler exposes manual triggers for the tick loop and the reaper.
type SchedulerHandler struct {
	Scheduler *service.Scheduler
	Reaper    *service.Reaper
}

func (h *SchedulerHandler) Register(r *gin.Engine) {
	g := r.Group("/api/scheduler")
	g.POST("/tick", h.tick)
	g.POST("/reap", h.reap)
}

// @Summary Run one scheduler tick now
// @Tags scheduler
// @Success 200 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/scheduler/tick [post]
func (h *SchedulerHandler) tick(c *gin.Context) {
	if h.Scheduler == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	res, err := h.Scheduler.Tick(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, res, nil)
}

// @Summary Fail stale running runs now
// @Tags scheduler
// @Success 200 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/scheduler/reap [post]
func (h *SchedulerHandler) reap(c *gin.Context) {
	if h.Reaper == nil {
		Error(c, http.StatusInternalServerError, "reaper unavailable", nil)
		return
	}
	n, err := h.Reaper.Sweep(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"reaped": n}, nil)
}

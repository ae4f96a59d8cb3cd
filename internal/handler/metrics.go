package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alpacabot/internal/service"
)

type MetricsHandler struct {
	Metrics *service.MetricsService
}

func (h *MetricsHandler) Register(r *gin.Engine) {
	r.GET("/api/metrics/overview", h.overview)
}

// @Summary Overview counters
// @Tags metrics
// @Success 200 {object} map[string]any
// @Router /api/metrics/overview [get]
func (h *MetricsHandler) overview(c *gin.Context) {
	if h.Metrics == nil || h.Metrics.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	out, err := h.Metrics.Overview(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, out, nil)
}

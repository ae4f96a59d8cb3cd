package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceName = "alpaca-bot-api"

// Pinger is anything with a cheap liveness probe: the repository, the redis publisher.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	DB    Pinger
	Redis Pinger
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
	g := r.Group("/api/health")
	g.GET("", h.service)
	g.GET("/db", h.db)
	g.GET("/redis", h.redis)
}

// @Summary Health check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Readiness check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /readyz [get]
func (h *HealthHandler) ready(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_missing"})
		return
	}
	if err := ping(c, h.DB); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// @Summary Service health
// @Tags health
// @Success 200 {object} map[string]any
// @Router /api/health [get]
func (h *HealthHandler) service(c *gin.Context) {
	Ok(c, gin.H{"ok": true, "service": serviceName}, nil)
}

// @Summary Database health
// @Tags health
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /api/health/db [get]
func (h *HealthHandler) db(c *gin.Context) {
	h.probe(c, "db", h.DB)
}

// @Summary Redis health
// @Tags health
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /api/health/redis [get]
func (h *HealthHandler) redis(c *gin.Context) {
	h.probe(c, "redis", h.Redis)
}

func (h *HealthHandler) probe(c *gin.Context, name string, p Pinger) {
	if p == nil {
		Error(c, http.StatusServiceUnavailable, name+" not configured", nil)
		return
	}
	if err := ping(c, p); err != nil {
		Error(c, http.StatusServiceUnavailable, err.Error(), map[string]any{name: false})
		return
	}
	Ok(c, gin.H{"ok": true, name: true}, nil)
}

func ping(c *gin.Context, p Pinger) error {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	return p.Ping(ctx)
}

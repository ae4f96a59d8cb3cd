package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"alpacabot/internal/repository"
	"alpacabot/internal/service"
)

type SettingsHandler struct {
	Repo     repository.SettingRepository
	Settings *service.SettingsService
}

type settingRequest struct {
	Value json.RawMessage `json:"value"`
}

type settingsBulkRequest struct {
	Items map[string]json.RawMessage `json:"items"`
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/settings")
	g.GET("", h.list)
	g.POST("/bulk", h.bulk)
	g.GET("/:key", h.get)
	g.PUT("/:key", h.put)
	g.PATCH("/:key", h.patch)
	g.DELETE("/:key", h.delete)
}

// @Summary List settings
// @Tags settings
// @Param prefix query string false "key prefix, e.g. feature."
// @Success 200 {object} map[string]any
// @Router /api/settings [get]
func (h *SettingsHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := clampedIntQuery(c, "limit", 200, 1, 500)
	offset := intQuery(c, "offset", 0)
	params := repository.ListSettingsParams{Limit: limit, Offset: offset, Prefix: strQueryPtr(c, "prefix")}
	items, err := h.Repo.ListSettings(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountSettings(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get setting
// @Tags settings
// @Param key path string true "setting key"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/settings/{key} [get]
func (h *SettingsHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	item, err := h.Repo.GetSetting(c.Request.Context(), strings.TrimSpace(c.Param("key")))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "Setting not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Replace setting value
// @Tags settings
// @Accept json
// @Param key path string true "setting key"
// @Param body body settingRequest true "{\"value\": {...}}"
// @Success 200 {object} map[string]any
// @Router /api/settings/{key} [put]
func (h *SettingsHandler) put(c *gin.Context) {
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	item, err := h.Settings.Put(c.Request.Context(), c.Param("key"), req.Value)
	if err != nil {
		writeSettingError(c, err)
		return
	}
	Ok(c, item, nil)
}

// @Summary Merge into setting value
// @Description Shallow-merges the given object into the stored one; creates the setting when missing.
// @Tags settings
// @Accept json
// @Param key path string true "setting key"
// @Param body body settingRequest true "{\"value\": {...}}"
// @Success 200 {object} map[string]any
// @Router /api/settings/{key} [patch]
func (h *SettingsHandler) patch(c *gin.Context) {
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	value := req.Value
	if len(value) == 0 {
		value = json.RawMessage("{}")
	}
	item, err := h.Settings.Patch(c.Request.Context(), c.Param("key"), value)
	if err != nil {
		writeSettingError(c, err)
		return
	}
	Ok(c, item, nil)
}

// @Summary Upsert many settings
// @Tags settings
// @Accept json
// @Param body body settingsBulkRequest true "{\"items\": {\"risk\": {...}}}"
// @Success 200 {object} map[string]any
// @Router /api/settings/bulk [post]
func (h *SettingsHandler) bulk(c *gin.Context) {
	var req settingsBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	items, err := h.Settings.Bulk(c.Request.Context(), req.Items)
	if err != nil {
		writeSettingError(c, err)
		return
	}
	Ok(c, items, nil)
}

// @Summary Delete setting
// @Tags settings
// @Param key path string true "setting key"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/settings/{key} [delete]
func (h *SettingsHandler) delete(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ok, err := h.Repo.DeleteSetting(c.Request.Context(), strings.TrimSpace(c.Param("key")))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if !ok {
		Error(c, http.StatusNotFound, "Setting not found", nil)
		return
	}
	Ok(c, gin.H{"ok": true}, nil)
}

func writeSettingError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidSettingKey) || errors.Is(err, service.ErrInvalidSettingValue) {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Error(c, http.StatusBadGateway, err.Error(), nil)
}

package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"alpacabot/internal/models"
	"alpacabot/internal/repository"
)

type SymbolHandler struct {
	Repo repository.SymbolRepository
}

type symbolRequest struct {
	Symbol     string         `json:"symbol"`
	Name       string         `json:"name"`
	Exchange   string         `json:"exchange"`
	AssetClass string         `json:"asset_class"`
	Enabled    *bool          `json:"enabled"`
	Meta       map[string]any `json:"meta"`
}

type symbolPatchRequest struct {
	Name       *string        `json:"name"`
	Exchange   *string        `json:"exchange"`
	AssetClass *string        `json:"asset_class"`
	Enabled    *bool          `json:"enabled"`
	Meta       map[string]any `json:"meta"`
}

type symbolsBulkRequest struct {
	Items []symbolRequest `json:"items"`
}

func (h *SymbolHandler) Register(r *gin.Engine) {
	g := r.Group("/api/symbols")
	g.GET("", h.list)
	g.POST("", h.create)
	g.POST("/bulk", h.bulk)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

// @Summary List symbols
// @Tags symbols
// @Param q query string false "substring of ticker or name"
// @Param enabled query bool false "filter by enabled"
// @Param limit query int false "1..1000, default 200"
// @Param offset query int false "offset"
// @Success 200 {object} map[string]any
// @Router /api/symbols [get]
func (h *SymbolHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := clampedIntQuery(c, "limit", 200, 1, 1000)
	offset := intQuery(c, "offset", 0)
	params := repository.ListSymbolsParams{
		Limit:   limit,
		Offset:  offset,
		Query:   strQueryPtr(c, "q"),
		Enabled: boolQueryPtr(c, "enabled"),
	}
	items, err := h.Repo.ListSymbols(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountSymbols(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get symbol
// @Tags symbols
// @Param id path string true "symbol id"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/symbols/{id} [get]
func (h *SymbolHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	item, err := h.Repo.GetSymbol(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "Symbol not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Create symbol
// @Tags symbols
// @Accept json
// @Param body body symbolRequest true "symbol"
// @Success 200 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/symbols [post]
func (h *SymbolHandler) create(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req symbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	item, msg := req.model()
	if msg != "" {
		Error(c, http.StatusBadRequest, msg, nil)
		return
	}
	if err := h.Repo.CreateSymbol(c.Request.Context(), &item); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			Error(c, http.StatusConflict, "Symbol already exists", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Update symbol
// @Tags symbols
// @Accept json
// @Param id path string true "symbol id"
// @Param body body symbolPatchRequest true "fields to change"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/symbols/{id} [patch]
func (h *SymbolHandler) update(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req symbolPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	update := repository.SymbolUpdate{
		Name:       req.Name,
		Exchange:   req.Exchange,
		AssetClass: req.AssetClass,
		Enabled:    req.Enabled,
	}
	if req.Meta != nil {
		update.Meta = objectJSON(req.Meta)
	}
	item, err := h.Repo.UpdateSymbol(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "Symbol not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Delete symbol
// @Tags symbols
// @Param id path string true "symbol id"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/symbols/{id} [delete]
func (h *SymbolHandler) delete(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ok, err := h.Repo.DeleteSymbol(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if !ok {
		Error(c, http.StatusNotFound, "Symbol not found", nil)
		return
	}
	Ok(c, gin.H{"ok": true}, nil)
}

// @Summary Upsert symbols by ticker
// @Tags symbols
// @Accept json
// @Param body body symbolsBulkRequest true "{\"items\": [...]}"
// @Success 200 {object} map[string]any
// @Router /api/symbols/bulk [post]
func (h *SymbolHandler) bulk(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req symbolsBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	// Later items win when a ticker repeats.
	index := map[string]int{}
	rows := make([]models.Symbol, 0, len(req.Items))
	for _, it := range req.Items {
		item, msg := it.model()
		if msg != "" {
			Error(c, http.StatusBadRequest, msg, nil)
			return
		}
		if i, ok := index[item.Symbol]; ok {
			rows[i] = item
			continue
		}
		index[item.Symbol] = len(rows)
		rows = append(rows, item)
	}
	n, err := h.Repo.UpsertSymbols(c.Request.Context(), rows)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"upserted": n}, nil)
}

func (r symbolRequest) model() (models.Symbol, string) {
	ticker := strings.ToUpper(strings.TrimSpace(r.Symbol))
	if ticker == "" {
		return models.Symbol{}, "symbol required"
	}
	if len(ticker) > 32 {
		return models.Symbol{}, "symbol must be at most 32 characters"
	}
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return models.Symbol{
		Symbol:     ticker,
		Name:       strings.TrimSpace(r.Name),
		Exchange:   strings.TrimSpace(r.Exchange),
		AssetClass: strings.TrimSpace(r.AssetClass),
		Enabled:    enabled,
		Meta:       objectJSON(r.Meta),
	}, ""
}

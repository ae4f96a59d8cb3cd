package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"alpacabot/internal/models"
	"alpacabot/internal/repository/memory"
	"alpacabot/internal/service"
	"alpacabot/internal/strategy"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

type stubDispatcher struct {
	ids []string
	err error
}

func (d *stubDispatcher) Dispatch(id string) error {
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, id)
	return nil
}

type pingErr struct{ err error }

func (p pingErr) Ping(context.Context) error { return p.err }

type testAPI struct {
	engine     *gin.Engine
	store      *memory.Store
	dispatcher *stubDispatcher
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.New()
	d := &stubDispatcher{}
	settings := &service.SettingsService{Repo: store}
	r := gin.New()
	(&HealthHandler{DB: store, Redis: pingErr{err: errors.New("redis down")}}).Register(r)
	(&StrategyHandler{Repo: store, Registry: strategy.NewRegistry(nil), Dispatcher: d}).Register(r)
	(&RunHandler{Repo: store}).Register(r)
	(&MetricsHandler{Metrics: &service.MetricsService{Repo: store}}).Register(r)
	(&SettingsHandler{Repo: store, Settings: settings}).Register(r)
	(&SymbolHandler{Repo: store}).Register(r)
	(&SchedulerHandler{
		Scheduler: &service.Scheduler{Repo: store, Dispatcher: d, Settings: settings},
		Reaper:    &service.Reaper{Repo: store, Settings: settings},
	}).Register(r)
	return &testAPI{engine: r, store: store, dispatcher: d}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"ok":true,"service":"alpaca-bot-api"}`, string(env.Data))

	code, _ = api.do(t, http.MethodGet, "/api/health/db", "")
	assert.Equal(t, http.StatusOK, code)

	code, env = api.do(t, http.MethodGet, "/api/health/redis", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "redis down", env.Message)
}

func TestStrategies_CreateValidateAndConflict(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(t, http.MethodPost, "/api/strategies",
		`{"name":"aapl","type":"sma_cross","enabled":true,"interval_seconds":30,"symbols":["aapl"," msft "],"params":{"fast":5}}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	var created models.StrategyConfig
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{"AAPL", "MSFT"}, created.SymbolList())
	assert.Equal(t, 30, created.IntervalSeconds)

	code, _ = api.do(t, http.MethodPost, "/api/strategies", `{"name":"aapl","type":"sma_cross"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = api.do(t, http.MethodPost, "/api/strategies", `{"name":"x","type":"sma_cross","interval_seconds":4}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = api.do(t, http.MethodPost, "/api/strategies", `{"name":"y","type":"sma_cross","interval_seconds":86401}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = api.do(t, http.MethodPost, "/api/strategies", `{"name":"z","type":"momentum"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = api.do(t, http.MethodPost, "/api/strategies", `{"type":"sma_cross"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.do(t, http.MethodGet, "/api/strategies?enabled=true", "")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, env.Meta["total"])
}

func TestStrategies_UpdateDeleteAndRun(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	cfg := &models.StrategyConfig{Name: "s1", Type: strategy.SMACrossKey, Enabled: false, IntervalSeconds: 60}
	require.NoError(t, api.store.CreateStrategy(ctx, cfg))

	code, _ := api.do(t, http.MethodPost, "/api/strategies/"+cfg.ID+"/run", "")
	assert.Equal(t, http.StatusConflict, code)

	code, env := api.do(t, http.MethodPatch, "/api/strategies/"+cfg.ID, `{"enabled":true,"symbols":["tsla"]}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	var updated models.StrategyConfig
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.True(t, updated.Enabled)
	assert.Equal(t, "s1", updated.Name)
	assert.Equal(t, []string{"TSLA"}, updated.SymbolList())

	code, _ = api.do(t, http.MethodPost, "/api/strategies/"+cfg.ID+"/run", "")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, []string{cfg.ID}, api.dispatcher.ids)

	api.dispatcher.err = service.ErrAlreadyQueued
	code, _ = api.do(t, http.MethodPost, "/api/strategies/"+cfg.ID+"/run", "")
	assert.Equal(t, http.StatusConflict, code)

	code, _ = api.do(t, http.MethodPatch, "/api/strategies/missing", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.do(t, http.MethodDelete, "/api/strategies/"+cfg.ID, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(t, http.MethodDelete, "/api/strategies/"+cfg.ID, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStrategies_Types(t *testing.T) {
	api := newTestAPI(t)
	code, env := api.do(t, http.MethodGet, "/api/strategies/types", "")
	require.Equal(t, http.StatusOK, code)
	var types []strategyType
	require.NoError(t, json.Unmarshal(env.Data, &types))
	require.Len(t, types, 2)
	assert.Equal(t, strategy.CrossOverKey, types[0].Key)
	assert.Equal(t, strategy.SMACrossKey, types[1].Key)
}

func TestRuns_ListAndGet(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	for i, status := range []string{models.RunStatusOK, models.RunStatusError, models.RunStatusRunning} {
		require.NoError(t, api.store.CreateRun(ctx, &models.StrategyRun{
			StrategyID: "s1",
			Status:     status,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	code, env := api.do(t, http.MethodGet, "/api/runs?limit=2", "")
	require.Equal(t, http.StatusOK, code)
	var runs []models.StrategyRun
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, models.RunStatusRunning, runs[0].Status)
	assert.EqualValues(t, 3, env.Meta["total"])

	code, env = api.do(t, http.MethodGet, "/api/runs?status=error", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	require.Len(t, runs, 1)

	code, env = api.do(t, http.MethodGet, "/api/runs?since=2024-01-02T10:00:30Z", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	assert.Len(t, runs, 2)

	code, _ = api.do(t, http.MethodGet, "/api/runs?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = api.do(t, http.MethodGet, "/api/runs?status=done", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.do(t, http.MethodGet, "/api/runs/"+runs[0].ID, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(t, http.MethodGet, "/api/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsOverview(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	require.NoError(t, api.store.CreateStrategy(ctx, &models.StrategyConfig{Name: "a", Type: strategy.SMACrossKey, Enabled: true}))
	require.NoError(t, api.store.CreateRun(ctx, &models.StrategyRun{StrategyID: "a", Status: models.RunStatusError, StartedAt: time.Now()}))

	code, env := api.do(t, http.MethodGet, "/api/metrics/overview", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"strategies_total":1,"strategies_enabled":1,"runs_total":1,"runs_errors":1,"runs_running":0}`, string(env.Data))
}

func TestSettings_Lifecycle(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(t, http.MethodGet, "/api/settings/risk", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, env := api.do(t, http.MethodPut, "/api/settings/risk", `{"value":{"max_orders_per_run":5}}`)
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = api.do(t, http.MethodPatch, "/api/settings/risk", `{"value":{"max_position_qty":10}}`)
	require.Equal(t, http.StatusOK, code)
	var item models.BotSetting
	require.NoError(t, json.Unmarshal(env.Data, &item))
	assert.JSONEq(t, `{"max_orders_per_run":5,"max_position_qty":10}`, string(item.Value))

	code, _ = api.do(t, http.MethodPost, "/api/settings/bulk", `{"items":{"trading":{"mode":"paper"},"feature.scheduler":false}}`)
	require.Equal(t, http.StatusOK, code)

	code, env = api.do(t, http.MethodGet, "/api/settings?prefix=feature.", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, env.Meta["total"])

	code, env = api.do(t, http.MethodPost, "/api/scheduler/tick", "")
	require.Equal(t, http.StatusOK, code)
	var tick service.TickResult
	require.NoError(t, json.Unmarshal(env.Data, &tick))
	assert.True(t, tick.Paused)

	code, _ = api.do(t, http.MethodDelete, "/api/settings/risk", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(t, http.MethodDelete, "/api/settings/risk", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.do(t, http.MethodPut, "/api/settings/risk", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSymbols_Lifecycle(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(t, http.MethodPost, "/api/symbols", `{"symbol":" aapl ","name":"Apple Inc."}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	var sym models.Symbol
	require.NoError(t, json.Unmarshal(env.Data, &sym))
	assert.Equal(t, "AAPL", sym.Symbol)
	assert.True(t, sym.Enabled)

	code, _ = api.do(t, http.MethodPost, "/api/symbols", `{"symbol":"AAPL"}`)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = api.do(t, http.MethodPost, "/api/symbols", `{"symbol":"  "}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.do(t, http.MethodPost, "/api/symbols/bulk",
		`{"items":[{"symbol":"msft","name":"Microsoft"},{"symbol":"aapl","name":"Apple","enabled":false},{"symbol":"MSFT","name":"Microsoft Corp"}]}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.JSONEq(t, `{"upserted":2}`, string(env.Data))

	code, env = api.do(t, http.MethodGet, "/api/symbols?enabled=true", "")
	require.Equal(t, http.StatusOK, code)
	var list []models.Symbol
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Microsoft Corp", list[0].Name)

	code, env = api.do(t, http.MethodPatch, "/api/symbols/"+sym.ID, `{"exchange":"NASDAQ"}`)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &sym))
	assert.Equal(t, "NASDAQ", sym.Exchange)

	code, _ = api.do(t, http.MethodDelete, "/api/symbols/"+sym.ID, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(t, http.MethodGet, "/api/symbols/"+sym.ID, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestScheduler_TickDispatches(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	cfg := &models.StrategyConfig{Name: "due", Type: strategy.SMACrossKey, Enabled: true, IntervalSeconds: 60}
	require.NoError(t, api.store.CreateStrategy(ctx, cfg))

	code, env := api.do(t, http.MethodPost, "/api/scheduler/tick", "")
	require.Equal(t, http.StatusOK, code)
	var tick service.TickResult
	require.NoError(t, json.Unmarshal(env.Data, &tick))
	assert.Equal(t, []string{cfg.ID}, tick.Dispatched)

	code, env = api.do(t, http.MethodPost, "/api/scheduler/reap", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"reaped":0}`, string(env.Data))
}

type chanSource struct {
	ch chan []byte
}

func (s chanSource) Subscribe(ctx context.Context) (<-chan []byte, func(), error) {
	return s.ch, func() {}, nil
}

func TestWS_HelloThenForward(t *testing.T) {
	gin.SetMode(gin.TestMode)
	src := chanSource{ch: make(chan []byte, 2)}
	r := gin.New()
	(&WSHandler{Source: src, Channel: "bot_events"}).Register(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	_, msg, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"hello","channel":"bot_events"}`, string(msg))

	src.ch <- []byte(`{"type":"run_completed","run_id":"r1"}`)
	src.ch <- []byte(`not json`)

	_, msg, err = conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"run_completed","run_id":"r1"}`, string(msg))

	_, msg, err = conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"raw","data":"not json"}`, string(msg))
}

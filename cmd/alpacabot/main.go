package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"alpacabot/internal/broker"
	"alpacabot/internal/config"
	cronrunner "alpacabot/internal/cron"
	"alpacabot/internal/db"
	"alpacabot/internal/events"
	"alpacabot/internal/execution"
	"alpacabot/internal/handler"
	"alpacabot/internal/logger"
	"alpacabot/internal/marketdata"
	"alpacabot/internal/repository"
	gormrepository "alpacabot/internal/repository/gorm"
	"alpacabot/internal/repository/memory"
	"alpacabot/internal/risk"
	"alpacabot/internal/service"
	"alpacabot/internal/strategy"

	_ "alpacabot/docs"
)

func main() {
	cfgPath := os.Getenv("ALPACABOT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("ALPACABOT_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var store repository.Repository
	switch strings.ToLower(strings.TrimSpace(cfg.DB.Driver)) {
	case "memory":
		logger.Warn("using in-memory store; state is lost on exit")
		store = memory.New()
	default:
		dbConn, err := db.Open(cfg.DB)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(dbConn)

		if err := db.Ping(dbConn); err != nil {
			logger.Fatal("db ping failed", zap.Error(err))
		}
		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		store = gormrepository.New(dbConn.Gorm)
	}

	settingsSvc := &service.SettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default feature switches failed", zap.Error(err))
	}

	// Events: the in-process hub always, redis when configured.
	hub := events.NewHub(64, logger)
	publisher := events.Multi{hub}
	var eventSource events.Source = hub
	var redisPinger handler.Pinger
	if url := strings.TrimSpace(cfg.Redis.URL); url != "" {
		client, err := events.NewRedisClient(url)
		if err != nil {
			logger.Fatal("redis url invalid", zap.Error(err))
		}
		defer client.Close()
		redisPub := events.NewRedisPublisher(client, cfg.Events.Channel, cfg.Events.PublishTimeout, logger)
		publisher = append(publisher, redisPub)
		eventSource = redisPub
		redisPinger = redisPub
	} else {
		logger.Info("redis not configured; events stay in process")
	}

	var md marketdata.Provider
	switch strings.ToLower(cfg.MarketData.Provider) {
	case "massive":
		m := cfg.MarketData.Massive
		md = marketdata.NewMassiveProvider(&http.Client{Timeout: m.Timeout}, marketdata.MassiveOptions{
			BaseURL:       m.BaseURL,
			APIKey:        m.APIKey,
			Timeout:       m.Timeout,
			MaxRetries:    m.MaxRetries,
			BackoffBase:   m.BackoffBase,
			BackoffJitter: m.BackoffJitter,
			Timespan:      m.Timespan,
		}, logger)
	default:
		md = marketdata.NewAlpacaProvider(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataBaseURL, cfg.Alpaca.Feed)
	}

	var orderBroker broker.Broker
	if strings.EqualFold(cfg.Alpaca.Mode, "live") {
		orderBroker = broker.NewAlpacaBroker(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, logger)
	} else {
		orderBroker = broker.NewDryRunBroker(logger)
	}
	logger.Info("engine configured",
		zap.String("broker_mode", cfg.Alpaca.Mode),
		zap.String("market_data", cfg.MarketData.Provider),
		zap.String("db_driver", cfg.DB.Driver),
	)

	registry := strategy.NewRegistry(md)
	riskMgr := &risk.Manager{Config: cfg.Risk, Repo: store, Logger: logger}
	runner := &service.Runner{
		Repo:             store,
		Registry:         registry,
		Executor:         &execution.Executor{Broker: orderBroker, Logger: logger},
		Risk:             riskMgr,
		Events:           publisher,
		Logger:           logger,
		RunTimeout:       cfg.Scheduler.RunTimeout,
		StrategyDefaults: cfg.StrategyDefaults,
	}
	pool := service.NewPool(cfg.Scheduler.Workers, cfg.Scheduler.QueueSize, runner.Run, logger)
	scheduler := &service.Scheduler{
		Repo:       store,
		Dispatcher: pool,
		Settings:   settingsSvc,
		Events:     publisher,
		Logger:     logger,
	}
	reaper := &service.Reaper{
		Repo:       store,
		Settings:   settingsSvc,
		Events:     publisher,
		Logger:     logger,
		StaleAfter: cfg.Reaper.StaleAfter,
	}
	if cfg.Reaper.StaleAfter <= cfg.Scheduler.RunTimeout {
		logger.Warn("reaper.stale_after should exceed scheduler.run_timeout; live runs may be reaped",
			zap.Duration("stale_after", cfg.Reaper.StaleAfter),
			zap.Duration("run_timeout", cfg.Scheduler.RunTimeout),
		)
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(handler.WriteAuditMiddleware(logger))

	(&handler.HealthHandler{DB: store, Redis: redisPinger}).Register(engine)
	(&handler.StrategyHandler{Repo: store, Registry: registry, Dispatcher: pool}).Register(engine)
	(&handler.RunHandler{Repo: store}).Register(engine)
	(&handler.MetricsHandler{Metrics: &service.MetricsService{Repo: store}}).Register(engine)
	(&handler.SettingsHandler{Repo: store, Settings: settingsSvc}).Register(engine)
	(&handler.SymbolHandler{Repo: store}).Register(engine)
	(&handler.SchedulerHandler{Scheduler: scheduler, Reaper: reaper}).Register(engine)
	(&handler.WSHandler{Source: eventSource, Channel: cfg.Events.Channel, Logger: logger}).Register(engine)
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	baseCtx := ctx

	// Runs get their own context so a shutdown lets in-flight runs finish first.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()
	pool.Start(runCtx)

	cronRunner := cronrunner.New(logger, baseCtx)
	if cfg.Scheduler.Enabled {
		_, err = cronRunner.Add(cfg.Scheduler.TickSpec, func(ctx context.Context) {
			if _, err := scheduler.Tick(ctx); err != nil {
				logger.Error("cron scheduler tick failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Fatal("cron register scheduler tick failed", zap.Error(err))
		}
	} else {
		logger.Warn("scheduler disabled; strategies only run on demand")
	}
	if cfg.Reaper.Enabled {
		_, err = cronRunner.Add(cfg.Reaper.Spec, func(ctx context.Context) {
			n, err := reaper.Sweep(ctx)
			if err != nil {
				logger.Error("cron reaper failed", zap.Error(err))
				return
			}
			if n > 0 {
				logger.Warn("cron reaper finalized stale runs", zap.Int("reaped", n))
			}
		})
		if err != nil {
			logger.Warn("cron register reaper failed", zap.Error(err))
		}
	}
	cronRunner.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	cronRunner.Stop()

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Scheduler.RunTimeout+5*time.Second)
	defer cancelDrain()
	if err := pool.Stop(drainCtx); err != nil {
		logger.Warn("in-flight runs did not finish; cancelling", zap.Error(err), zap.Int("in_flight", pool.InFlight()))
		cancelRuns()
		finalCtx, cancelFinal := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelFinal()
		if err := pool.Stop(finalCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("pool stop failed", zap.Error(err))
		}
	}
	logger.Info("shutdown complete", zap.Uint64("events_dropped", hub.Dropped()))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

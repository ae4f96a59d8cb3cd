package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Events     EventsConfig     `mapstructure:"events"`
	Alpaca     AlpacaConfig     `mapstructure:"alpaca"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Reaper     ReaperConfig     `mapstructure:"reaper"`

	// Per-type params merged under a strategy's own params at evaluation time.
	StrategyDefaults map[string]map[string]any `mapstructure:"strategy_defaults"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	// Driver is "postgres" or "memory". The memory driver keeps everything in process.
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type EventsConfig struct {
	Channel        string        `mapstructure:"channel"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

type AlpacaConfig struct {
	// Mode is "live" (orders go to the trading API) or "dry-run".
	Mode        string `mapstructure:"mode"`
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
	BaseURL     string `mapstructure:"base_url"`
	DataBaseURL string `mapstructure:"data_base_url"`
	Feed        string `mapstructure:"feed"`
}

type MarketDataConfig struct {
	Provider string        `mapstructure:"provider"`
	Massive  MassiveConfig `mapstructure:"massive"`
}

type MassiveConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	BackoffJitter time.Duration `mapstructure:"backoff_jitter"`
	Timespan      string        `mapstructure:"timespan"`
}

type RiskConfig struct {
	MaxPositionQty  float64 `mapstructure:"max_position_qty"`
	MaxOrdersPerRun int     `mapstructure:"max_orders_per_run"`
}

type SchedulerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	TickSpec   string        `mapstructure:"tick_spec"`
	Workers    int           `mapstructure:"workers"`
	QueueSize  int           `mapstructure:"queue_size"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

type ReaperConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Spec       string        `mapstructure:"spec"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ALPACABOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.url", "")
	v.SetDefault("events.channel", "bot_events")
	v.SetDefault("events.publish_timeout", "2s")

	v.SetDefault("alpaca.mode", "dry-run")
	v.SetDefault("alpaca.api_key", "")
	v.SetDefault("alpaca.api_secret", "")
	v.SetDefault("alpaca.base_url", "https://paper-api.alpaca.markets")
	v.SetDefault("alpaca.data_base_url", "https://data.alpaca.markets")
	v.SetDefault("alpaca.feed", "iex")

	v.SetDefault("market_data.provider", "alpaca")
	v.SetDefault("market_data.massive.base_url", "https://api.massive.com")
	v.SetDefault("market_data.massive.api_key", "")
	v.SetDefault("market_data.massive.timeout", "30s")
	v.SetDefault("market_data.massive.max_retries", 6)
	v.SetDefault("market_data.massive.backoff_base", "600ms")
	v.SetDefault("market_data.massive.backoff_jitter", "250ms")
	v.SetDefault("market_data.massive.timespan", "day")

	v.SetDefault("risk.max_position_qty", 100)
	v.SetDefault("risk.max_orders_per_run", 20)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.tick_spec", "@every 60s")
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.queue_size", 64)
	v.SetDefault("scheduler.run_timeout", "2m")

	v.SetDefault("reaper.enabled", true)
	v.SetDefault("reaper.spec", "@every 5m")
	v.SetDefault("reaper.stale_after", "15m")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	mainnetRESTURL = "https://api.binance.com"
	mainnetWSURL   = "wss://stream.binance.com:9443"
	testnetRESTURL = "https://testnet.binance.vision"
	testnetWSURL   = "wss://testnet.binance.vision"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Binance       BinanceConfig      `mapstructure:"binance"`
	Pricing       PricingConfig      `mapstructure:"pricing"`
	Trading       TradingConfig      `mapstructure:"trading"`
	Liquidity     LiquidityConfig    `mapstructure:"liquidity"`
	Risk          RiskConfig         `mapstructure:"risk"`
	Execution     ExecutionConfig    `mapstructure:"execution"`
	Postgres      PostgresConfig     `mapstructure:"postgres"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Telemetry     TelemetryConfig    `mapstructure:"telemetry"`
	Health        HealthConfig       `mapstructure:"health"`
	TUIMode       bool               `mapstructure:"-"` // Set at runtime, not from config file
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// BinanceConfig holds Binance REST/WebSocket configuration.
type BinanceConfig struct {
	Testnet             bool          `mapstructure:"testnet"`
	RESTURL             string        `mapstructure:"rest_url"`
	WebSocketURL        string        `mapstructure:"websocket_url"`
	APIKey              string        `mapstructure:"api_key"`
	APISecret           string        `mapstructure:"api_secret"`
	RecvWindow          time.Duration `mapstructure:"recv_window"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	RequestsPerMinute   int           `mapstructure:"requests_per_minute"`
	MaxAttempts         int           `mapstructure:"max_attempts"`
	BackoffBase         time.Duration `mapstructure:"backoff_base"`
	RateLimitBackoffCap time.Duration `mapstructure:"rate_limit_backoff_cap"`
	NetworkBackoffCap   time.Duration `mapstructure:"network_backoff_cap"`
	ErrorWindow         time.Duration `mapstructure:"error_window"`
	ExchangeInfoTTL     time.Duration `mapstructure:"exchange_info_ttl"`
}

// BaseURL returns the REST endpoint, honouring the testnet switch.
func (c *BinanceConfig) BaseURL() string {
	if c.RESTURL != "" {
		return c.RESTURL
	}
	if c.Testnet {
		return testnetRESTURL
	}
	return mainnetRESTURL
}

// StreamURL returns the WebSocket endpoint, honouring the testnet switch.
func (c *BinanceConfig) StreamURL() string {
	if c.WebSocketURL != "" {
		return c.WebSocketURL
	}
	if c.Testnet {
		return testnetWSURL
	}
	return mainnetWSURL
}

// PricingConfig selects and tunes the price source.
type PricingConfig struct {
	Source         string        `mapstructure:"source"` // websocket | rest | redis
	StaleAfter     time.Duration `mapstructure:"stale_after"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	MirrorToRedis  bool          `mapstructure:"mirror_to_redis"`
}

// TriangleConfig is one configured trade path.
type TriangleConfig struct {
	Path  []string `mapstructure:"path"`
	Pairs []string `mapstructure:"pairs"`
}

// TradingConfig holds opportunity evaluation settings.
type TradingConfig struct {
	InitialCapital        float64          `mapstructure:"initial_capital"`
	MaxTradeSize          float64          `mapstructure:"max_trade_size"`
	MinProfitThresholdPct float64          `mapstructure:"min_profit_threshold_pct"`
	TakerFee              float64          `mapstructure:"taker_fee"`
	MaxSlippagePct        float64          `mapstructure:"max_slippage_pct"`
	DryRun                bool             `mapstructure:"dry_run"`
	ScanInterval          time.Duration    `mapstructure:"scan_interval"`
	StatusEvery           int              `mapstructure:"status_every"`
	Triangles             []TriangleConfig `mapstructure:"triangles"`
}

// InitialCapitalDecimal returns the starting capital as decimal.Decimal.
func (c *TradingConfig) InitialCapitalDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.InitialCapital)
}

// MaxTradeSizeDecimal returns the trade size cap as decimal.Decimal.
func (c *TradingConfig) MaxTradeSizeDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxTradeSize)
}

// MinProfitThresholdDecimal returns the profitability threshold in percent.
func (c *TradingConfig) MinProfitThresholdDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitThresholdPct)
}

// TakerFeeDecimal returns the taker fee as a fraction.
func (c *TradingConfig) TakerFeeDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.TakerFee)
}

// SlippageFraction returns max_slippage_pct as a fraction (0.2 -> 0.002).
func (c *TradingConfig) SlippageFraction() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxSlippagePct).Div(decimal.NewFromInt(100))
}

// MaxSlippagePctDecimal returns the slippage ceiling in percent.
func (c *TradingConfig) MaxSlippagePctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxSlippagePct)
}

// Symbols returns the distinct pair symbols across all triangles.
func (c *TradingConfig) Symbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range c.Triangles {
		for _, p := range t.Pairs {
			p = strings.ToUpper(p)
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// LiquidityConfig holds order-book depth check settings.
type LiquidityConfig struct {
	DepthLimit             int           `mapstructure:"depth_limit"`
	MinLiquidityMultiplier float64       `mapstructure:"min_liquidity_multiplier"`
	CacheTTL               time.Duration `mapstructure:"cache_ttl"`
}

// RiskConfig holds the risk gate settings.
type RiskConfig struct {
	StatePath             string        `mapstructure:"state_path"`
	DailyMaxLossPct       float64       `mapstructure:"daily_max_loss_pct"`
	MaxTradesPerDay       int           `mapstructure:"max_trades_per_day"`
	MaxConsecutiveLosses  int           `mapstructure:"max_consecutive_losses"`
	LossCooldown          time.Duration `mapstructure:"loss_cooldown"`
	LossCooldown2         time.Duration `mapstructure:"loss_cooldown_2"`
	LossCooldown3         time.Duration `mapstructure:"loss_cooldown_3"`
	DailyStopResumeDelay  time.Duration `mapstructure:"daily_stop_resume_delay"`
	APIErrorRateThreshold float64       `mapstructure:"api_error_rate_threshold"`
	APIErrorPause         time.Duration `mapstructure:"api_error_pause"`
	MinProfitThresholdPct float64       `mapstructure:"min_profit_threshold_pct"`
}

// ExecutionConfig holds trade executor settings.
type ExecutionConfig struct {
	MinFillRatio        float64       `mapstructure:"min_fill_ratio"`
	SingleLegTimeout    time.Duration `mapstructure:"single_leg_timeout"`
	FullTriangleTimeout time.Duration `mapstructure:"full_triangle_timeout"`
}

// PostgresConfig holds trade history database settings. An empty DSN keeps
// history in memory.
type PostgresConfig struct {
	DSN       string        `mapstructure:"dsn"`
	MaxConns  int32         `mapstructure:"max_conns"`
	MinConns  int32         `mapstructure:"min_conns"`
	Retention time.Duration `mapstructure:"retention"` // 0 keeps everything
}

// RedisConfig holds price cache settings. An empty address disables Redis.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	PriceTTL  time.Duration `mapstructure:"price_ttl"`
}

// NotificationConfig holds alert delivery settings.
type NotificationConfig struct {
	TelegramBotToken string        `mapstructure:"telegram_bot_token"`
	TelegramChatID   string        `mapstructure:"telegram_chat_id"`
	TelegramURL      string        `mapstructure:"telegram_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// TelegramEnabled reports whether both Telegram credentials are present.
func (c *NotificationConfig) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceExporter  string `mapstructure:"trace_exporter"` // zipkin, otlp-grpc, otlp-http, console, none
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health and status server settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Binance
	v.BindEnv("binance.testnet", "ARB_BINANCE_TESTNET", "BINANCE_TESTNET")
	v.BindEnv("binance.api_key", "ARB_BINANCE_API_KEY", "BINANCE_API_KEY")
	v.BindEnv("binance.api_secret", "ARB_BINANCE_API_SECRET", "BINANCE_API_SECRET")
	v.BindEnv("binance.rest_url", "ARB_BINANCE_REST_URL")
	v.BindEnv("binance.websocket_url", "ARB_BINANCE_WS_URL", "BINANCE_WS_URL")

	// Trading
	v.BindEnv("trading.dry_run", "ARB_DRY_RUN", "DRY_RUN")
	v.BindEnv("trading.initial_capital", "ARB_INITIAL_CAPITAL")
	v.BindEnv("trading.min_profit_threshold_pct", "ARB_MIN_PROFIT_THRESHOLD")

	// Storage
	v.BindEnv("postgres.dsn", "ARB_POSTGRES_DSN", "DATABASE_URL")
	v.BindEnv("redis.addr", "ARB_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("redis.password", "ARB_REDIS_PASSWORD", "REDIS_PASSWORD")

	// Notifications
	v.BindEnv("notifications.telegram_bot_token", "ARB_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("notifications.telegram_chat_id", "ARB_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "ARB_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
	v.BindEnv("telemetry.trace_exporter", "ARB_OTEL_TRACE_EXPORTER")
}

// DefaultTriangles returns the trade paths used when none are configured.
func DefaultTriangles() []map[string]any {
	return []map[string]any{
		{"path": []string{"USDT", "BTC", "ETH", "USDT"}, "pairs": []string{"BTCUSDT", "ETHBTC", "ETHUSDT"}},
		{"path": []string{"USDT", "BTC", "BNB", "USDT"}, "pairs": []string{"BTCUSDT", "BNBBTC", "BNBUSDT"}},
		{"path": []string{"USDT", "ETH", "BNB", "USDT"}, "pairs": []string{"ETHUSDT", "BNBETH", "BNBUSDT"}},
		{"path": []string{"BTC", "ETH", "BNB", "BTC"}, "pairs": []string{"ETHBTC", "BNBETH", "BNBBTC"}},
	}
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "triarb-bot")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Binance defaults
	v.SetDefault("binance.testnet", true)
	v.SetDefault("binance.recv_window", "5s")
	v.SetDefault("binance.request_timeout", "10s")
	v.SetDefault("binance.requests_per_minute", 1200)
	v.SetDefault("binance.max_attempts", 4)
	v.SetDefault("binance.backoff_base", "500ms")
	v.SetDefault("binance.rate_limit_backoff_cap", "60s")
	v.SetDefault("binance.network_backoff_cap", "10s")
	v.SetDefault("binance.error_window", "5m")
	v.SetDefault("binance.exchange_info_ttl", "1h")

	// Pricing defaults
	v.SetDefault("pricing.source", "websocket")
	v.SetDefault("pricing.stale_after", "10s")
	v.SetDefault("pricing.initial_backoff", "1s")
	v.SetDefault("pricing.max_backoff", "30s")
	v.SetDefault("pricing.mirror_to_redis", true)

	// Trading defaults
	v.SetDefault("trading.initial_capital", 1000)
	v.SetDefault("trading.max_trade_size", 5000)
	v.SetDefault("trading.min_profit_threshold_pct", 0.5)
	v.SetDefault("trading.taker_fee", 0.001)
	v.SetDefault("trading.max_slippage_pct", 0.2)
	v.SetDefault("trading.dry_run", true)
	v.SetDefault("trading.scan_interval", "1s")
	v.SetDefault("trading.status_every", 100)
	v.SetDefault("trading.triangles", DefaultTriangles())

	// Liquidity defaults
	v.SetDefault("liquidity.depth_limit", 50)
	v.SetDefault("liquidity.min_liquidity_multiplier", 10)
	v.SetDefault("liquidity.cache_ttl", "5s")

	// Risk defaults
	v.SetDefault("risk.state_path", "data/risk_state.json")
	v.SetDefault("risk.daily_max_loss_pct", 2.0)
	v.SetDefault("risk.max_trades_per_day", 50)
	v.SetDefault("risk.max_consecutive_losses", 3)
	v.SetDefault("risk.loss_cooldown", "60s")
	v.SetDefault("risk.loss_cooldown_2", "5m")
	v.SetDefault("risk.loss_cooldown_3", "15m")
	v.SetDefault("risk.daily_stop_resume_delay", "1h")
	v.SetDefault("risk.api_error_rate_threshold", 0.2)
	v.SetDefault("risk.api_error_pause", "2m")
	v.SetDefault("risk.min_profit_threshold_pct", 0.5)

	// Execution defaults
	v.SetDefault("execution.min_fill_ratio", 0.95)
	v.SetDefault("execution.single_leg_timeout", "5s")
	v.SetDefault("execution.full_triangle_timeout", "15s")

	// Storage defaults
	v.SetDefault("postgres.max_conns", 5)
	v.SetDefault("postgres.min_conns", 1)
	v.SetDefault("postgres.retention", "720h")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "triarb")
	v.SetDefault("redis.price_ttl", "30s")

	// Notification defaults
	v.SetDefault("notifications.telegram_url", "https://api.telegram.org")
	v.SetDefault("notifications.timeout", "5s")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "triarb-bot")
	v.SetDefault("telemetry.trace_exporter", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)

	// Health defaults
	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Trading.DryRun && (c.Binance.APIKey == "" || c.Binance.APISecret == "") {
		return fmt.Errorf("binance.api_key and binance.api_secret are required when trading.dry_run is false")
	}
	if c.Trading.InitialCapital <= 0 {
		return fmt.Errorf("trading.initial_capital must be positive")
	}
	if c.Trading.MaxTradeSize <= 0 {
		return fmt.Errorf("trading.max_trade_size must be positive")
	}
	if c.Trading.TakerFee < 0 || c.Trading.TakerFee >= 1 {
		return fmt.Errorf("trading.taker_fee must be in [0, 1): %v", c.Trading.TakerFee)
	}
	if c.Trading.MaxSlippagePct < 0 || c.Trading.MaxSlippagePct >= 100 {
		return fmt.Errorf("trading.max_slippage_pct must be in [0, 100): %v", c.Trading.MaxSlippagePct)
	}
	if c.Trading.ScanInterval <= 0 {
		return fmt.Errorf("trading.scan_interval must be positive")
	}
	if len(c.Trading.Triangles) == 0 {
		return fmt.Errorf("trading.triangles cannot be empty")
	}
	for i, t := range c.Trading.Triangles {
		if len(t.Path) != 4 || len(t.Pairs) != 3 {
			return fmt.Errorf("trading.triangles[%d]: need 4 assets and 3 pairs, got %d and %d", i, len(t.Path), len(t.Pairs))
		}
	}
	switch c.Pricing.Source {
	case "websocket", "rest", "redis":
	default:
		return fmt.Errorf("pricing.source must be websocket, rest or redis: %q", c.Pricing.Source)
	}
	if c.Pricing.Source == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when pricing.source is redis")
	}
	if c.Liquidity.DepthLimit <= 0 {
		return fmt.Errorf("liquidity.depth_limit must be positive")
	}
	if c.Risk.StatePath == "" {
		return fmt.Errorf("risk.state_path is required")
	}
	if c.Risk.MaxConsecutiveLosses <= 0 || c.Risk.MaxTradesPerDay <= 0 {
		return fmt.Errorf("risk.max_consecutive_losses and risk.max_trades_per_day must be positive")
	}
	if c.Risk.APIErrorRateThreshold <= 0 || c.Risk.APIErrorRateThreshold > 1 {
		return fmt.Errorf("risk.api_error_rate_threshold must be in (0, 1]: %v", c.Risk.APIErrorRateThreshold)
	}
	if c.Execution.MinFillRatio <= 0 || c.Execution.MinFillRatio > 1 {
		return fmt.Errorf("execution.min_fill_ratio must be in (0, 1]: %v", c.Execution.MinFillRatio)
	}
	if c.Execution.SingleLegTimeout <= 0 || c.Execution.FullTriangleTimeout <= 0 {
		return fmt.Errorf("execution timeouts must be positive")
	}
	return nil
}

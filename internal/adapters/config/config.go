package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"hypertrader/pkg/errors"
)

type Config struct {
	App           AppConfig
	AI            AIConfig
	Agent         AgentConfig
	Risk          RiskConfig
	Hyperliquid   HyperliquidConfig
	Execution     ExecutionConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ClickHouse    ClickHouseConfig
	Postgres      PostgresConfig
	Telegram      TelegramConfig
	Metrics       MetricsConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"hypertrader"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type AIConfig struct {
	Provider          string  `envconfig:"AI_PROVIDER" default:"openai"`
	Model             string  `envconfig:"AI_MODEL" default:"gpt-4o"`
	Temperature       float64 `envconfig:"AI_TEMPERATURE" default:"0.1"`
	MaxTokens         int     `envconfig:"AI_MAX_TOKENS" default:"1024"`
	OpenAIKey         string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL     string  `envconfig:"OPENAI_BASE_URL"`
	GeminiKey         string  `envconfig:"GEMINI_API_KEY"`
	RequestsPerMinute int     `envconfig:"AI_REQUESTS_PER_MINUTE" default:"60"`
}

// AgentConfig bounds the dispatch loop
type AgentConfig struct {
	MaxSteps             int           `envconfig:"AGENT_MAX_STEPS" default:"10"`
	ModelTimeout         time.Duration `envconfig:"AGENT_MODEL_TIMEOUT" default:"60s"`
	ToolTimeout          time.Duration `envconfig:"AGENT_TOOL_TIMEOUT" default:"30s"`
	ToolRetries          int           `envconfig:"AGENT_TOOL_RETRIES" default:"2"`
	ToolRetryBackoff     time.Duration `envconfig:"AGENT_TOOL_RETRY_BACKOFF" default:"500ms"`
	AdapterFailureBudget int           `envconfig:"AGENT_ADAPTER_FAILURE_BUDGET" default:"2"`
	AccountID            string        `envconfig:"AGENT_ACCOUNT_ID" default:"default"`
}

// RiskConfig holds the trade intent ceilings. Fractions are of the trading amount.
type RiskConfig struct {
	MaxPositionSize     decimal.Decimal `envconfig:"RISK_MAX_POSITION_SIZE" default:"0.10"`
	MaxStopLoss         decimal.Decimal `envconfig:"RISK_MAX_STOP_LOSS" default:"0.05"`
	MaxNotionalUSD      decimal.Decimal `envconfig:"RISK_MAX_NOTIONAL_USD" default:"1000"`
	DefaultPositionSize decimal.Decimal `envconfig:"RISK_DEFAULT_POSITION_SIZE" default:"0.01"`
	DefaultStopLoss     decimal.Decimal `envconfig:"RISK_DEFAULT_STOP_LOSS" default:"0.02"`
	ClampToBounds       bool            `envconfig:"RISK_CLAMP_TO_BOUNDS" default:"false"`
}

type HyperliquidConfig struct {
	Testnet         bool          `envconfig:"HYPERLIQUID_TESTNET" default:"true"`
	MainnetURL      string        `envconfig:"HYPERLIQUID_MAINNET_URL" default:"https://api.hyperliquid.xyz"`
	TestnetURL      string        `envconfig:"HYPERLIQUID_TESTNET_URL" default:"https://api.hyperliquid-testnet.xyz"`
	UseRealAPI      bool          `envconfig:"HYPERLIQUID_USE_REAL_API" default:"true"`
	AccountAddress  string        `envconfig:"HYPERLIQUID_ACCOUNT_ADDRESS"`
	SignerURL       string        `envconfig:"HYPERLIQUID_SIGNER_URL"`
	WeightPerMinute int           `envconfig:"HYPERLIQUID_WEIGHT_PER_MINUTE" default:"1200"`
	HTTPTimeout     time.Duration `envconfig:"HYPERLIQUID_HTTP_TIMEOUT" default:"10s"`
}

// BaseURL returns the endpoint for the selected network
func (c HyperliquidConfig) BaseURL() string {
	if c.Testnet {
		return c.TestnetURL
	}
	return c.MainnetURL
}

// CanTrade reports whether real orders can be signed and sent
func (c HyperliquidConfig) CanTrade() bool {
	return c.AccountAddress != "" && c.SignerURL != ""
}

type ExecutionConfig struct {
	LockTimeout time.Duration `envconfig:"EXECUTION_LOCK_TIMEOUT" default:"15s"`
	LockTTL     time.Duration `envconfig:"EXECUTION_LOCK_TTL" default:"60s"`
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
}

type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"trading"`
}

type PostgresConfig struct {
	Enabled  bool   `envconfig:"POSTGRES_ENABLED" default:"false"`
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"hypertrader"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"hypertrader"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"5"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type TelegramConfig struct {
	Enabled  bool   `envconfig:"TELEGRAM_ENABLED" default:"false"`
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   int64  `envconfig:"TELEGRAM_CHAT_ID"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Addr    string `envconfig:"METRICS_ADDR" default:":9090"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field consistency that struct tags cannot express
func (c *Config) Validate() error {
	var errs errors.MultiError

	if c.Agent.MaxSteps <= 0 {
		errs.Add(errors.NewValidationError("AGENT_MAX_STEPS", "must be positive", c.Agent.MaxSteps))
	}
	if c.Agent.ModelTimeout <= 0 {
		errs.Add(errors.NewValidationError("AGENT_MODEL_TIMEOUT", "must be positive", c.Agent.ModelTimeout))
	}
	if c.Agent.ToolTimeout <= 0 {
		errs.Add(errors.NewValidationError("AGENT_TOOL_TIMEOUT", "must be positive", c.Agent.ToolTimeout))
	}
	if c.Agent.AdapterFailureBudget < 0 {
		errs.Add(errors.NewValidationError("AGENT_ADAPTER_FAILURE_BUDGET", "must not be negative", c.Agent.AdapterFailureBudget))
	}

	if !c.Risk.MaxPositionSize.IsPositive() || c.Risk.MaxPositionSize.GreaterThan(decimal.NewFromInt(1)) {
		errs.Add(errors.NewValidationError("RISK_MAX_POSITION_SIZE", "must be in (0, 1]", c.Risk.MaxPositionSize))
	}
	if !c.Risk.MaxStopLoss.IsPositive() || c.Risk.MaxStopLoss.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs.Add(errors.NewValidationError("RISK_MAX_STOP_LOSS", "must be in (0, 1)", c.Risk.MaxStopLoss))
	}
	if c.Risk.DefaultPositionSize.GreaterThan(c.Risk.MaxPositionSize) {
		errs.Add(errors.NewValidationError("RISK_DEFAULT_POSITION_SIZE", "exceeds RISK_MAX_POSITION_SIZE", c.Risk.DefaultPositionSize))
	}
	if c.Risk.DefaultStopLoss.GreaterThan(c.Risk.MaxStopLoss) {
		errs.Add(errors.NewValidationError("RISK_DEFAULT_STOP_LOSS", "exceeds RISK_MAX_STOP_LOSS", c.Risk.DefaultStopLoss))
	}

	switch c.AI.Provider {
	case "openai":
		if c.AI.OpenAIKey == "" {
			errs.Add(errors.NewValidationError("OPENAI_API_KEY", "required when AI_PROVIDER=openai", ""))
		}
	case "gemini":
		if c.AI.GeminiKey == "" {
			errs.Add(errors.NewValidationError("GEMINI_API_KEY", "required when AI_PROVIDER=gemini", ""))
		}
	default:
		errs.Add(errors.NewValidationError("AI_PROVIDER", "must be openai or gemini", c.AI.Provider))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs.Add(errors.NewValidationError("KAFKA_BROKERS", "required when KAFKA_ENABLED", nil))
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == 0) {
		errs.Add(errors.NewValidationError("TELEGRAM_BOT_TOKEN", "token and TELEGRAM_CHAT_ID required when TELEGRAM_ENABLED", nil))
	}
	if c.ErrorTracking.Enabled && c.ErrorTracking.SentryDSN == "" {
		errs.Add(errors.NewValidationError("SENTRY_DSN", "required when ERROR_TRACKING_ENABLED", nil))
	}

	if err := errs.ToError(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

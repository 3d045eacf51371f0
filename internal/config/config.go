package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all FlipSync configuration
type Config struct {
	App          AppConfig                    `mapstructure:"app"`
	Database     DatabaseConfig               `mapstructure:"database"`
	Redis        RedisConfig                  `mapstructure:"redis"`
	NATS         NATSConfig                   `mapstructure:"nats"`
	LLM          LLMConfig                    `mapstructure:"llm"`
	Marketplaces map[string]MarketplaceConfig `mapstructure:"marketplaces"`
	Approval     ApprovalConfig               `mapstructure:"approval"`
	Pipeline     PipelineConfig               `mapstructure:"pipeline"`
	Inventory    InventoryConfig              `mapstructure:"inventory"`
	Orders       OrdersConfig                 `mapstructure:"orders"`
	Analytics    AnalyticsConfig              `mapstructure:"analytics"`
	Alerts       AlertsConfig                 `mapstructure:"alerts"`
	API          APIConfig                    `mapstructure:"api"`
	Monitoring   MonitoringConfig             `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	SellerID    string `mapstructure:"seller_id"`
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS messaging settings
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// LLMConfig contains LLM gateway settings
type LLMConfig struct {
	Endpoint       string  `mapstructure:"endpoint"`
	APIKey         string  `mapstructure:"api_key"`
	PrimaryModel   string  `mapstructure:"primary_model"`
	FallbackModel  string  `mapstructure:"fallback_model"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Timeout        int     `mapstructure:"timeout"` // milliseconds
	RequestCeiling float64 `mapstructure:"request_ceiling"`
	DailyBudget    float64 `mapstructure:"daily_budget"`
	CacheTTL       int     `mapstructure:"cache_ttl"` // minutes, strategic analysis
}

// MarketplaceConfig contains per-marketplace sync settings and credentials
type MarketplaceConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	APIKey       string  `mapstructure:"api_key"`
	APISecret    string  `mapstructure:"api_secret"`
	SyncInterval int     `mapstructure:"sync_interval"` // seconds
	BatchSize    int     `mapstructure:"batch_size"`
	RateLimit    float64 `mapstructure:"rate_limit"` // requests per second
}

// ApprovalConfig contains per-agent-type approval thresholds
type ApprovalConfig struct {
	Thresholds map[string]ApprovalThreshold `mapstructure:"thresholds"`
}

// ApprovalThreshold mirrors the approval policy knobs for one agent type
type ApprovalThreshold struct {
	AutoApprove float64  `mapstructure:"auto_approve"`
	Escalation  float64  `mapstructure:"escalation"`
	HumanTypes  []string `mapstructure:"human_types"`
}

// PipelineConfig contains decision pipeline settings
type PipelineConfig struct {
	MinConfidence    float64 `mapstructure:"min_confidence"`
	MinReasoningLen  int     `mapstructure:"min_reasoning_len"`
	OfflineBufferCap int     `mapstructure:"offline_buffer_cap"`
}

// InventoryConfig contains sync and rebalancing settings
type InventoryConfig struct {
	RebalanceInterval int    `mapstructure:"rebalance_interval"` // minutes
	RebalanceStrategy string `mapstructure:"rebalance_strategy"`
}

// OrdersConfig contains order engine settings
type OrdersConfig struct {
	IngestInterval int `mapstructure:"ingest_interval"` // seconds
	QueueCapacity  int `mapstructure:"queue_capacity"`
}

// AnalyticsConfig contains the analytics engine windows
type AnalyticsConfig struct {
	WindowHours       int `mapstructure:"window_hours"`
	PredictionHorizon int `mapstructure:"prediction_horizon"` // hours
	CorrelationWindow int `mapstructure:"correlation_window"` // minutes
}

// AlertsConfig contains alerting settings
type AlertsConfig struct {
	MaxPerCorrelation  int    `mapstructure:"max_per_correlation"`
	SuppressionMinutes int    `mapstructure:"suppression_minutes"`
	TelegramToken      string `mapstructure:"telegram_token"`
	TelegramChatID     int64  `mapstructure:"telegram_chat_id"`
}

// APIConfig contains REST API settings
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MonitoringConfig contains metrics settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("FLIPSYNC")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// config file not found; defaults and environment variables apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "FlipSync")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.seller_id", "default-seller")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "flipsync")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "flipsync.decisions")

	v.SetDefault("llm.endpoint", "http://localhost:8080/v1/generate")
	v.SetDefault("llm.primary_model", "gpt-4o-mini")
	v.SetDefault("llm.fallback_model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.timeout", 30000)
	v.SetDefault("llm.request_ceiling", 0.05)
	v.SetDefault("llm.daily_budget", 2.00)
	v.SetDefault("llm.cache_ttl", 30)

	for _, m := range []string{"ebay", "amazon", "walmart", "etsy", "facebook", "mercari"} {
		v.SetDefault(fmt.Sprintf("marketplaces.%s.enabled", m), m == "ebay")
		v.SetDefault(fmt.Sprintf("marketplaces.%s.sync_interval", m), 900)
		v.SetDefault(fmt.Sprintf("marketplaces.%s.batch_size", m), 25)
		v.SetDefault(fmt.Sprintf("marketplaces.%s.rate_limit", m), 5.0)
	}

	v.SetDefault("approval.thresholds.content.auto_approve", 0.9)
	v.SetDefault("approval.thresholds.content.escalation", 0.5)
	v.SetDefault("approval.thresholds.content.human_types", []string{"template_changes"})
	v.SetDefault("approval.thresholds.logistics.auto_approve", 0.85)
	v.SetDefault("approval.thresholds.logistics.escalation", 0.5)
	v.SetDefault("approval.thresholds.logistics.human_types", []string{"carrier_contract_changes"})
	v.SetDefault("approval.thresholds.executive.auto_approve", 0.95)
	v.SetDefault("approval.thresholds.executive.escalation", 0.6)
	v.SetDefault("approval.thresholds.executive.human_types", []string{"strategic_decision"})

	v.SetDefault("pipeline.min_confidence", 0.7)
	v.SetDefault("pipeline.min_reasoning_len", 10)
	v.SetDefault("pipeline.offline_buffer_cap", 1000)

	v.SetDefault("inventory.rebalance_interval", 60)
	v.SetDefault("inventory.rebalance_strategy", "equal_distribution")

	v.SetDefault("orders.ingest_interval", 300)
	v.SetDefault("orders.queue_capacity", 100)

	v.SetDefault("analytics.window_hours", 24)
	v.SetDefault("analytics.prediction_horizon", 12)
	v.SetDefault("analytics.correlation_window", 30)

	v.SetDefault("alerts.max_per_correlation", 5)
	v.SetDefault("alerts.suppression_minutes", 15)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8081)

	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetTimeout returns the LLM timeout as time.Duration
func (c *LLMConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// GetCacheTTL returns the strategic analysis cache TTL
func (c *LLMConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Minute
}

// GetSyncInterval returns the marketplace sync interval
func (c *MarketplaceConfig) GetSyncInterval() time.Duration {
	return time.Duration(c.SyncInterval) * time.Second
}

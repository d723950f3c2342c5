package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Resolver   ResolverConfig   `yaml:"resolver" mapstructure:"resolver"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Promotion  PromotionConfig  `yaml:"promotion" mapstructure:"promotion"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Avito      AvitoConfig      `yaml:"avito" mapstructure:"avito"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings for the semantic resolver.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// NotionConfig holds Notion API credentials and the review database ID.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReviewDB string `yaml:"review_db" mapstructure:"review_db"`
}

// ScoreWeights holds the relative weights of the three validation checks.
type ScoreWeights struct {
	Tech     float64 `yaml:"tech" mapstructure:"tech"`
	Business float64 `yaml:"business" mapstructure:"business"`
	Semantic float64 `yaml:"semantic" mapstructure:"semantic"`
}

// EngineConfig holds reconciliation thresholds and penalty constants.
type EngineConfig struct {
	AutoAcceptThreshold float64      `yaml:"auto_accept_threshold" mapstructure:"auto_accept_threshold"`
	ReviewThreshold     float64      `yaml:"review_threshold" mapstructure:"review_threshold"`
	SemanticMatchFloor  float64      `yaml:"semantic_match_floor" mapstructure:"semantic_match_floor"`
	ExternalPenalty     float64      `yaml:"external_penalty" mapstructure:"external_penalty"`
	BusinessRulePenalty float64      `yaml:"business_rule_penalty" mapstructure:"business_rule_penalty"`
	Weights             ScoreWeights `yaml:"weights" mapstructure:"weights"`
}

// ResolverConfig bounds calls to the external semantic resolver.
type ResolverConfig struct {
	TimeoutSecs         int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts         int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBackoffMs      int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	RetryMaxBackoffMs   int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	RateLimit           float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst               int     `yaml:"burst" mapstructure:"burst"`
	BreakerThreshold    int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// CatalogConfig points at fixture files used when the store holds no
// catalog yet.
type CatalogConfig struct {
	FixturePath   string `yaml:"fixture_path" mapstructure:"fixture_path"`
	ModifiersPath string `yaml:"modifiers_path" mapstructure:"modifiers_path"`
	FieldsPath    string `yaml:"fields_path" mapstructure:"fields_path"`
}

// PromotionConfig gates promotion of externally resolved modifiers into
// the registry.
type PromotionConfig struct {
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MinSightings  int     `yaml:"min_sightings" mapstructure:"min_sightings"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentRows int `yaml:"max_concurrent_rows" mapstructure:"max_concurrent_rows"`
}

// AvitoConfig holds the Avito feed export and FTP upload settings.
type AvitoConfig struct {
	FTPHost    string `yaml:"ftp_host" mapstructure:"ftp_host"`
	FTPUser    string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPass    string `yaml:"ftp_pass" mapstructure:"ftp_pass"`
	RemotePath string `yaml:"remote_path" mapstructure:"remote_path"`
	Company    string `yaml:"company" mapstructure:"company"`
	Phone      string `yaml:"phone" mapstructure:"phone"`
	Address    string `yaml:"address" mapstructure:"address"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig drives the background health checker in serve mode.
// An empty webhook URL disables alert delivery; the checker itself only
// starts when a webhook is configured.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	ReviewBacklogLimit   int     `yaml:"review_backlog_limit" mapstructure:"review_backlog_limit"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECONCILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_rows", 8)
	v.SetDefault("engine.auto_accept_threshold", 0.95)
	v.SetDefault("engine.review_threshold", 0.80)
	v.SetDefault("engine.semantic_match_floor", 0.70)
	v.SetDefault("engine.external_penalty", 0.05)
	v.SetDefault("engine.business_rule_penalty", 0.15)
	v.SetDefault("engine.weights.tech", 0.3)
	v.SetDefault("engine.weights.business", 0.3)
	v.SetDefault("engine.weights.semantic", 0.4)
	v.SetDefault("resolver.timeout_secs", 20)
	v.SetDefault("resolver.max_attempts", 3)
	v.SetDefault("resolver.retry_backoff_ms", 500)
	v.SetDefault("resolver.retry_max_backoff_ms", 30000)
	v.SetDefault("resolver.rate_limit", 2.0)
	v.SetDefault("resolver.burst", 1)
	v.SetDefault("resolver.breaker_threshold", 5)
	v.SetDefault("resolver.breaker_cooldown_secs", 30)
	v.SetDefault("catalog.fixture_path", "testdata/catalog.yaml")
	v.SetDefault("catalog.modifiers_path", "testdata/modifiers.yaml")
	v.SetDefault("catalog.fields_path", "")
	v.SetDefault("promotion.min_confidence", 0.85)
	v.SetDefault("promotion.min_sightings", 2)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("avito.remote_path", "feeds/snowmobiles.xml")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.review_backlog_limit", 50)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required by the given mode are present
// and that tunables are inside sane bounds. Mode is one of "reconcile",
// "store", "export" or "serve". The sqlite driver tolerates an empty
// database_url; the store falls back to a local file.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "reconcile", "serve":
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "store", "export":
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	if c.Batch.MaxConcurrentRows < 1 || c.Batch.MaxConcurrentRows > 64 {
		problems = append(problems, "batch.max_concurrent_rows must be between 1 and 64")
	}

	for _, th := range []struct {
		name  string
		value float64
	}{
		{"engine.auto_accept_threshold", c.Engine.AutoAcceptThreshold},
		{"engine.review_threshold", c.Engine.ReviewThreshold},
		{"engine.semantic_match_floor", c.Engine.SemanticMatchFloor},
		{"engine.external_penalty", c.Engine.ExternalPenalty},
		{"engine.business_rule_penalty", c.Engine.BusinessRulePenalty},
		{"monitoring.failure_rate_threshold", c.Monitoring.FailureRateThreshold},
	} {
		if th.value < 0 || th.value > 1 {
			problems = append(problems, th.name+" must be between 0 and 1")
		}
	}
	if c.Engine.ReviewThreshold >= c.Engine.AutoAcceptThreshold {
		problems = append(problems, "engine.review_threshold must be below engine.auto_accept_threshold")
	}

	w := c.Engine.Weights
	if w.Tech < 0 || w.Business < 0 || w.Semantic < 0 {
		problems = append(problems, "engine.weights values must be >= 0")
	}
	if w.Tech+w.Business+w.Semantic <= 0 {
		problems = append(problems, "engine.weights must sum to a positive value")
	}

	if c.Resolver.MaxAttempts < 1 {
		problems = append(problems, "resolver.max_attempts must be >= 1")
	}
	if c.Resolver.TimeoutSecs < 1 {
		problems = append(problems, "resolver.timeout_secs must be >= 1")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	HubSpot   HubSpotConfig   `yaml:"hubspot" mapstructure:"hubspot"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Fuzzy     FuzzyConfig     `yaml:"fuzzy" mapstructure:"fuzzy"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures where tool state (rules, action log, scan
// history) is kept.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// HubSpotConfig holds CRM API credentials and tuning.
type HubSpotConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	PageLimit int    `yaml:"page_limit" mapstructure:"page_limit"`
}

// AnthropicConfig holds Anthropic API settings for the geo corrector.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SchedulerConfig tunes request pacing.
type SchedulerConfig struct {
	BaselineMs    int `yaml:"baseline_ms" mapstructure:"baseline_ms"`
	MinIntervalMs int `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	MaxIntervalMs int `yaml:"max_interval_ms" mapstructure:"max_interval_ms"`
	QueueSize     int `yaml:"queue_size" mapstructure:"queue_size"`
	MaxAttempts   int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// FuzzyConfig tunes the fuzzy duplicate scan.
type FuzzyConfig struct {
	Threshold     float64 `yaml:"threshold" mapstructure:"threshold"`
	NameWeight    float64 `yaml:"name_weight" mapstructure:"name_weight"`
	EmailWeight   float64 `yaml:"email_weight" mapstructure:"email_weight"`
	CompanyWeight float64 `yaml:"company_weight" mapstructure:"company_weight"`
}

// ServerConfig configures the local proxy server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("DQC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so viper still binds their env
	// vars; AutomaticEnv only sees keys it knows about.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "dataquality.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("hubspot.token", "")
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.page_limit", 100)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("scheduler.baseline_ms", 300)
	v.SetDefault("scheduler.min_interval_ms", 200)
	v.SetDefault("scheduler.max_interval_ms", 5000)
	v.SetDefault("scheduler.queue_size", 256)
	v.SetDefault("scheduler.max_attempts", 6)
	v.SetDefault("fuzzy.threshold", 0.85)
	v.SetDefault("fuzzy.name_weight", 0.5)
	v.SetDefault("fuzzy.email_weight", 0.3)
	v.SetDefault("fuzzy.company_weight", 0.2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

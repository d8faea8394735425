// Package config loads application configuration from file and environment
// and configures the global logger.
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
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Render    RenderConfig    `yaml:"render" mapstructure:"render"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the catalog persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`             // "sqlite" or "postgres"
	Path        string `yaml:"path" mapstructure:"path"`                 // sqlite database file
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"` // postgres connection string
}

// AnthropicConfig holds Anthropic API settings. Extraction calls against
// large documents legitimately take minutes, hence the generous timeouts.
type AnthropicConfig struct {
	Key                 string `yaml:"key" mapstructure:"key"`
	Model               string `yaml:"model" mapstructure:"model"`
	MaxTokens           int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	ExtractTimeoutSecs  int    `yaml:"extract_timeout_secs" mapstructure:"extract_timeout_secs"`
	SummaryTimeoutSecs  int    `yaml:"summary_timeout_secs" mapstructure:"summary_timeout_secs"`
	ChatTimeoutSecs     int    `yaml:"chat_timeout_secs" mapstructure:"chat_timeout_secs"`
	RateLimitPerMinute  int    `yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	RateLimitedAttempts int    `yaml:"rate_limited_attempts" mapstructure:"rate_limited_attempts"`
}

// JinaConfig holds Jina AI Reader settings (the URL fetch proxy).
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// RenderConfig configures PDF page rendering. DPI and JPEG quality trade
// legibility against payload size on the large multimodal extraction calls.
type RenderConfig struct {
	DPI         float64 `yaml:"dpi" mapstructure:"dpi"`
	JPEGQuality int     `yaml:"jpeg_quality" mapstructure:"jpeg_quality"`
	MaxPages    int     `yaml:"max_pages" mapstructure:"max_pages"` // 0 = no limit
}

// ServerConfig configures the local API server.
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
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Empty defaults register the secret keys with viper so
	// AutomaticEnv can fill them during Unmarshal.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "catalogs.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.extract_timeout_secs", 300)
	v.SetDefault("anthropic.summary_timeout_secs", 120)
	v.SetDefault("anthropic.chat_timeout_secs", 60)
	v.SetDefault("anthropic.rate_limit_per_minute", 30)
	v.SetDefault("anthropic.rate_limited_attempts", 3)
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("render.dpi", 144)
	v.SetDefault("render.jpeg_quality", 70)
	v.SetDefault("render.max_pages", 0)
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

// Validate checks that the configuration is usable for extraction runs.
func (c *Config) Validate() error {
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required (set CATALOG_ANTHROPIC_KEY)")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return eris.New("config: store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
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

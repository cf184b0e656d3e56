package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Provider ProviderConfig `mapstructure:"provider"`
	Matcher  MatcherConfig  `mapstructure:"matcher"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ProviderConfig struct {
	Kind    string        `mapstructure:"kind"`
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type MatcherConfig struct {
	Cutoff float64 `mapstructure:"cutoff"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	AdminRole string `mapstructure:"admin_role"`
}

type CatalogConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

type ChatConfig struct {
	HistoryTurns int `mapstructure:"history_turns"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.mode", "production")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "intent:")
	v.SetDefault("redis.ttl", time.Hour)
	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("provider.kind", ProviderHTTP)
	v.SetDefault("provider.url", "http://127.0.0.1:8001")
	v.SetDefault("provider.timeout", 5*time.Second)
	v.SetDefault("provider.openai.model", "gpt-4o-mini")
	v.SetDefault("provider.openai.max_tokens", 200)
	v.SetDefault("provider.openai.temperature", 0.7)
	v.SetDefault("matcher.cutoff", 0.6)
	v.SetDefault("auth.admin_role", "admin")
	// empty defaults so AutomaticEnv can bind the secrets on Unmarshal
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.openai.api_key", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("catalog.seed_file", "config/intents.yaml")
	v.SetDefault("chat.history_turns", 5)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "singlish-bot")
}

// Load reads defaults, then the optional YAML file at path, then CHATBOT_*
// environment variables. A .env file in the working directory is applied to
// the environment first when present.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHATBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv("ML_SERVICE_API_KEY")
	}
	if cfg.Provider.OpenAI.APIKey == "" {
		cfg.Provider.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Matcher.Cutoff < 0 || c.Matcher.Cutoff > 1 {
		return fmt.Errorf("matcher.cutoff must be within [0,1], got %v", c.Matcher.Cutoff)
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}
	if c.Redis.TTL <= 0 {
		return fmt.Errorf("redis.ttl must be positive")
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	switch c.Provider.Kind {
	case ProviderHTTP:
		if c.Provider.URL == "" {
			return fmt.Errorf("provider.url is required for the http provider")
		}
	case ProviderOpenAI:
		if c.Provider.OpenAI.APIKey == "" {
			return fmt.Errorf("provider.openai.api_key is required for the openai provider")
		}
	case ProviderNone:
	default:
		return fmt.Errorf("unknown provider.kind %q", c.Provider.Kind)
	}
	if c.Chat.HistoryTurns < 0 {
		return fmt.Errorf("chat.history_turns cannot be negative")
	}
	return nil
}

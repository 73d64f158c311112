package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/newthinker/papertrader/internal/core"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	MarketData MarketDataConfig `mapstructure:"marketdata"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Journal    JournalConfig    `mapstructure:"journal"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	Mode   string `mapstructure:"mode"`
	APIKey string `mapstructure:"api_key"`
	// AllowedOrigins lists browser origins that may open event streams.
	// Empty allows same-origin pages only; "*" allows any.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig selects a backend per kind of data.
type StorageConfig struct {
	Sessions SessionStoreConfig `mapstructure:"sessions"`
	Blob     BlobConfig         `mapstructure:"blob"`
	Bars     BarStoreConfig     `mapstructure:"bars"`
	// Migrate applies the embedded schema to database backends on start.
	Migrate bool `mapstructure:"migrate"`
}

type SessionStoreConfig struct {
	Type string `mapstructure:"type"` // "memory", "blob" or "postgres"
	DSN  string `mapstructure:"dsn"`  // For postgres
}

// BlobConfig configures the object store shared by the blob session
// store and the journal.
type BlobConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type BarStoreConfig struct {
	Type string `mapstructure:"type"` // "memory", "clickhouse" or "none"
	DSN  string `mapstructure:"dsn"`  // For clickhouse
}

type MarketDataConfig struct {
	Provider string        `mapstructure:"provider"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SimulationConfig bounds what clients may request. The engine enforces
// 7..50 days regardless.
type SimulationConfig struct {
	MinDays        int     `mapstructure:"min_days"`
	MaxDays        int     `mapstructure:"max_days"`
	LookbackBars   int     `mapstructure:"lookback_bars"`
	DefaultCapital float64 `mapstructure:"default_capital"`
	BoardLot       int64   `mapstructure:"board_lot"`
}

type JournalConfig struct {
	LotSize int64 `mapstructure:"lot_size"`
}

type LLMConfig struct {
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Claude   ClaudeConfig  `mapstructure:"claude"`
	OpenAI   OpenAIConfig  `mapstructure:"openai"`
	Gemini   GeminiConfig  `mapstructure:"gemini"`
}

type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file over Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand ${VAR} string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config that keeps sessions and the journal as JSON
// files under ./data and caches bars in memory.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Mode: "release",
		},
		Storage: StorageConfig{
			Sessions: SessionStoreConfig{Type: "blob"},
			Blob: BlobConfig{
				Type: "localfs",
				Path: "data",
			},
			Bars: BarStoreConfig{Type: "memory"},
		},
		MarketData: MarketDataConfig{
			Provider: "eastmoney",
			Timeout:  10 * time.Second,
		},
		Simulation: SimulationConfig{
			MinDays:        7,
			MaxDays:        50,
			LookbackBars:   30,
			DefaultCapital: 1_000_000,
			BoardLot:       100,
		},
		Journal: JournalConfig{
			LotSize: 100,
		},
		LLM: LLMConfig{
			Timeout: 60 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if err := c.Storage.validate(); err != nil {
		return err
	}

	if c.MarketData.Provider != "eastmoney" {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown marketdata provider %q", c.MarketData.Provider))
	}

	s := c.Simulation
	if s.MinDays < 7 || s.MaxDays > 50 || s.MinDays > s.MaxDays {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("simulation days must satisfy 7 <= min_days <= max_days <= 50, got %d..%d", s.MinDays, s.MaxDays))
	}
	if s.LookbackBars < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("lookback_bars cannot be negative, got %d", s.LookbackBars))
	}
	if s.DefaultCapital <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("default_capital must be positive, got %f", s.DefaultCapital))
	}
	if s.BoardLot < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("board_lot must be positive, got %d", s.BoardLot))
	}
	if c.Journal.LotSize < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("journal lot_size must be positive, got %d", c.Journal.LotSize))
	}

	// LLM validation - if provider set, check config exists
	switch c.LLM.Provider {
	case "":
	case "claude":
		if c.LLM.Claude.APIKey == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("claude api_key required when provider is claude"))
		}
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("openai api_key required when provider is openai"))
		}
	case "gemini":
		if c.LLM.Gemini.APIKey == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("gemini api_key required when provider is gemini"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}

	return nil
}

func (s StorageConfig) validate() error {
	switch s.Sessions.Type {
	case "memory", "blob":
	case "postgres":
		if s.Sessions.DSN == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.sessions.dsn required for postgres"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown session store %q", s.Sessions.Type))
	}

	switch s.Blob.Type {
	case "localfs":
		if s.Blob.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.blob.path required for localfs"))
		}
	case "s3":
		if s.Blob.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.blob.s3.bucket required for s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown blob store %q", s.Blob.Type))
	}

	switch s.Bars.Type {
	case "memory", "none":
	case "clickhouse":
		if s.Bars.DSN == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.bars.dsn required for clickhouse"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown bar store %q", s.Bars.Type))
	}
	return nil
}

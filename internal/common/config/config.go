package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port             string `mapstructure:"port"`
	Environment      string `mapstructure:"env"`
	ReadTimeout      int    `mapstructure:"read_timeout"`
	WriteTimeout     int    `mapstructure:"write_timeout"`
	DBPath           string `mapstructure:"db_path"`
	RulesPath        string `mapstructure:"rules_path"`
	SnapshotInterval int    `mapstructure:"snapshot_interval"`
	LogLevel         string `mapstructure:"log_level"`
	LogFormat        string `mapstructure:"log_format"`
	PersistDebounce  int    `mapstructure:"persist_debounce_ms"`
}

// SetDefaults регистрирует значения по умолчанию в v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "3000")
	v.SetDefault("env", "development")
	v.SetDefault("read_timeout", 10)
	v.SetDefault("write_timeout", 10)
	v.SetDefault("db_path", "data/db/planner.db")
	v.SetDefault("rules_path", "")
	v.SetDefault("snapshot_interval", 50)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("persist_debounce_ms", 250)
}

// Load загружает конфигурацию из переменных окружения и, если задан
// CONFIG_FILE, из файла (yaml, toml, json). Окружение имеет приоритет.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return FromViper(v)
}

// FromViper читает конфигурацию из уже настроенного v (флаги cobra,
// файл, окружение).
func FromViper(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.SnapshotInterval < 1 {
		return nil, fmt.Errorf("snapshot_interval must be >= 1, got %d", cfg.SnapshotInterval)
	}
	return &cfg, nil
}

func (c *Config) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

func (c *Config) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

func (c *Config) PersistDebounceDuration() time.Duration {
	return time.Duration(c.PersistDebounce) * time.Millisecond
}

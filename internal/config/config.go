package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/DoyleJ11/manor-backend/internal/engine"
)

type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	APIPrefix   string   `mapstructure:"api_prefix"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// DatabaseURL enables the match archive when set.
	DatabaseURL string `mapstructure:"database_url"`

	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	TurnTimeout    time.Duration `mapstructure:"turn_timeout"`

	KeyMode       string  `mapstructure:"key_mode"`
	KeyChance     float64 `mapstructure:"key_chance"`
	PowerOffer    int     `mapstructure:"power_offer"`
	PowersEnabled bool    `mapstructure:"powers_enabled"`
	Seed          uint64  `mapstructure:"seed"`
}

var cfg *AppConfig

func GetConfig() *AppConfig {
	if cfg == nil {
		c, err := InitConfig()
		if err != nil {
			panic(err)
		}
		cfg = c
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	rules := engine.DefaultRules()

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)
	v.SetDefault("log_level", "info")
	v.SetDefault("api_prefix", "/api")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("database_url", "")
	v.SetDefault("session_idle_ttl", 2*time.Hour)
	v.SetDefault("sweep_interval", 5*time.Minute)
	v.SetDefault("turn_timeout", time.Duration(0))
	v.SetDefault("key_mode", string(rules.KeyMode))
	v.SetDefault("key_chance", rules.KeyChance)
	v.SetDefault("power_offer", rules.PowerOffer)
	v.SetDefault("powers_enabled", rules.PowersEnabled)
	v.SetDefault("seed", 0)
}

// InitConfig layers defaults, an optional app_config.json in the working
// directory and MANOR_* environment variables (a .env file is loaded first).
func InitConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("app_config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("MANOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *AppConfig) Validate() error {
	switch engine.KeyMode(c.KeyMode) {
	case engine.KeyModeHidden, engine.KeyModeChance:
	default:
		return fmt.Errorf("config: unknown key_mode %q", c.KeyMode)
	}
	if c.KeyChance < 0 || c.KeyChance > 1 {
		return fmt.Errorf("config: key_chance must be within [0, 1], got %v", c.KeyChance)
	}
	if c.PowerOffer < 1 || c.PowerOffer > len(engine.PowerOrder) {
		return fmt.Errorf("config: power_offer must be within [1, %d], got %d", len(engine.PowerOrder), c.PowerOffer)
	}
	if c.Port <= 0 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	return nil
}

func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *AppConfig) Rules() engine.Rules {
	return engine.Rules{
		KeyMode:       engine.KeyMode(c.KeyMode),
		KeyChance:     c.KeyChance,
		PowerOffer:    c.PowerOffer,
		PowersEnabled: c.PowersEnabled,
	}
}

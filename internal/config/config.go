package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Amount  AmountConfig  `mapstructure:"amount"`
	Journal JournalConfig `mapstructure:"journal"`
	Sweep   SweepConfig   `mapstructure:"sweep"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Verbose   bool   `mapstructure:"verbose"`
	SystemLog bool   `mapstructure:"system_log"`
	File      string `mapstructure:"file"`
}

type AdminConfig struct {
	Address string `mapstructure:"address"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type AmountConfig struct {
	Decimals int32 `mapstructure:"decimals"`
}

// JournalConfig selects the event journal. An empty path keeps events in memory.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

type SweepConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

// Load reads the YAML file at path, overlays EASYBET_* environment variables
// and applies defaults. An empty path reads the environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EASYBET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("log.verbose", false)
	v.SetDefault("log.system_log", false)
	v.SetDefault("log.file", "")
	v.SetDefault("admin.address", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("amount.decimals", 8)
	v.SetDefault("journal.path", "")
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.spec", "@every 1m")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Admin.Address) == "" {
		return errors.New("admin.address is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Amount.Decimals < 0 || c.Amount.Decimals > 18 {
		return errors.Errorf("amount.decimals must be within 0..18, got %d", c.Amount.Decimals)
	}
	if c.Sweep.Enabled && strings.TrimSpace(c.Sweep.Spec) == "" {
		return errors.New("sweep.spec is required when the sweep is enabled")
	}
	return nil
}

// Package config loads runtime settings from environment variables and an
// optional config file using viper. Every setting has a sane default so the
// service runs with no configuration at all.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime settings for the service.
type Config struct {
	Addr        string        `mapstructure:"addr"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFormat   string        `mapstructure:"log_format"`
	DatabaseURL string        `mapstructure:"database_url"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	IdemTTL     time.Duration `mapstructure:"idem_ttl"`
	DevSeed     bool          `mapstructure:"dev_seed"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Load reads configuration from the environment (ORGLEDGER_ prefix) and, when
// path is non-empty, from a YAML file. Environment values win over the file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORGLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("idem_ttl", 24*time.Hour)
	v.SetDefault("dev_seed", false)
	v.SetDefault("read_timeout", 5*time.Second)
	v.SetDefault("write_timeout", 10*time.Second)
	v.SetDefault("idle_timeout", 60*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("cors_origins", []string{"*"})

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Package config loads process-level configuration: logging/data/pid
// paths, the introspection HTTP listen address, MQTT fan-out settings and
// the calculation-definition SQLite path. Channel configuration itself
// (ChannelConfig/RuntimeChannelConfig) is out of scope for this core and
// arrives from whatever embeds it, per the purpose-and-scope boundary.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds ambient process configuration.
type Config struct {
	Debug    bool   `mapstructure:"debug"`
	LogPath  string `mapstructure:"log-path"`
	DataPath string `mapstructure:"data-path"`
	PID      string `mapstructure:"pid"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`

	MQTT struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    uint16 `mapstructure:"port"`
	} `mapstructure:"mqtt"`

	Calc struct {
		SQLitePath string `mapstructure:"sqlite_path"`
	} `mapstructure:"calc"`
}

// Load loads config from an optional file plus COMSRV_-prefixed env vars.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("COMSRV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-path", "./log")
	v.SetDefault("data-path", "./data")
	v.SetDefault("pid", "./comsrv.pid")
	v.SetDefault("http.addr", ":8090")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.host", "0.0.0.0")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("calc.sqlite_path", "./data/calculations.db")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/comsrv")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal failed: %w", err)
	}
	return &cfg, nil
}

// EnsureDir creates a directory if it doesn't already exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create dir %s: %w", dir, err)
	}
	return nil
}

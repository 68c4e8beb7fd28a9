// Package config loads alarmd's configuration from a JSON file and the
// environment, following the same viper-based shape the reference
// service uses for its own configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the alarm engine. Unlike the
// reference service, Load does not stash the result in a package-level
// singleton — per Design Notes §9, the caller owns the value and passes
// it explicitly to whatever needs it.
type Config struct {
	Transport  TransportConfig  `mapstructure:"transport"`
	Store      StoreConfig      `mapstructure:"store"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Defaults   DefaultsConfig   `mapstructure:"defaults"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	HTTP       HTTPConfig       `mapstructure:"http"`
}

// TransportConfig describes the MQTT-like broker connection.
type TransportConfig struct {
	Broker         string `mapstructure:"broker"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	ClientID       string `mapstructure:"client_id"`
	SubscribeTopic string `mapstructure:"subscribe_topic"`
	AlarmTopic     string `mapstructure:"alarm_topic"`
}

// StoreConfig points at the durable store's backing file.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ProcessingConfig tunes the dispatcher and background jobs.
type ProcessingConfig struct {
	MaxWorkers          int `mapstructure:"max_workers"`
	IntakeCapacity      int `mapstructure:"intake_capacity"`
	CheckIntervalSecond int `mapstructure:"check_interval_seconds"`
}

// DefaultsConfig holds policy knobs with spec-mandated defaults.
type DefaultsConfig struct {
	RetentionDays         int `mapstructure:"retention_days"`
	ShuntFreshnessSeconds int `mapstructure:"shunt_freshness_seconds"`
}

// LoggingConfig controls the logrus-backed logger (see internal/logging).
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"`
}

// HTTPConfig controls the optional observability surface (SPEC_FULL §13).
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// Load reads configuration from configPath (if non-empty) or the default
// search path, then layers environment variable overrides on top.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("transport.broker", "localhost")
	v.SetDefault("transport.port", 1883)
	v.SetDefault("transport.client_id", "alarmd")
	v.SetDefault("transport.subscribe_topic", "sensors/+/data")
	v.SetDefault("transport.alarm_topic", "alarms/notifications")

	v.SetDefault("store.path", "./data/alarms.db")

	v.SetDefault("processing.max_workers", 20)
	v.SetDefault("processing.intake_capacity", 500)
	v.SetDefault("processing.check_interval_seconds", 60)

	v.SetDefault("defaults.retention_days", 30)
	v.SetDefault("defaults.shunt_freshness_seconds", 120)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.listen", ":8090")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed on defaults + environment.
	}

	v.SetEnvPrefix("ALARMD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}

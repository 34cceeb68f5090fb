package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Shift    ShiftConfig    `mapstructure:"shift"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// Shift Lifecycle Configuration
type ShiftConfig struct {
	// Maximum shift duration before the timeout monitor force-ends it
	MaxDuration time.Duration `mapstructure:"max_duration"`

	// Poll interval of the duration-timeout monitor
	TimeoutPollInterval time.Duration `mapstructure:"timeout_poll_interval"`

	// Interval of the retention cleanup loop
	RetentionPollInterval time.Duration `mapstructure:"retention_poll_interval"`

	// IANA timezone for wall-clock shift triggers
	Timezone string `mapstructure:"timezone"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	// Defaults setzen
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("shift.max_duration", "12h")
	viper.SetDefault("shift.timeout_poll_interval", "1m")
	viper.SetDefault("shift.retention_poll_interval", "24h")
	viper.SetDefault("shift.timezone", "UTC")
	viper.SetDefault("smtp.port", 587)

	// Environment Variables automatisch binden (Viper Feature)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("SC") // Environment Variables mit Prefix SC_

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// Location resolves the configured trigger timezone, falling back to UTC.
func (s *ShiftConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

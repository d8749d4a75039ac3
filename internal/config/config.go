package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Storage modes
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	AWS       AWSConfig       `yaml:"aws" envPrefix:"AWS_"`
	APNs      APNsConfig      `yaml:"apns" envPrefix:"APNS_"`
	JWT       JWTConfig       `yaml:"jwt" envPrefix:"JWT_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Calendar  CalendarConfig  `yaml:"calendar" envPrefix:"CALENDAR_"`
	Dispatch  DispatchConfig  `yaml:"dispatch" envPrefix:"DISPATCH_"`
	Reminders RemindersConfig `yaml:"reminders" envPrefix:"REMINDERS_"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port" env:"PORT"`
	Host string `yaml:"host" env:"HOST"`
}

// StorageConfig selects and configures the repository backend
type StorageConfig struct {
	Mode   string         `yaml:"mode" env:"MODE"`
	Local  LocalConfig    `yaml:"local" envPrefix:"LOCAL_"`
	Remote DatabaseConfig `yaml:"remote" envPrefix:"REMOTE_"`
}

// LocalConfig holds the single-device store configuration
type LocalConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string        `yaml:"host" env:"HOST"`
	Port        int           `yaml:"port" env:"PORT"`
	User        string        `yaml:"user" env:"USER"`
	Password    string        `yaml:"password" env:"PASSWORD"`
	DBName      string        `yaml:"dbname" env:"DBNAME"`
	SSLMode     string        `yaml:"sslmode" env:"SSLMODE"`
	CallTimeout time.Duration `yaml:"call_timeout" env:"CALL_TIMEOUT"`
	MaxRetries  int           `yaml:"max_retries" env:"MAX_RETRIES"`
}

// AWSConfig holds S3 configuration for meal images
type AWSConfig struct {
	Region    string `yaml:"region" env:"REGION"`
	S3Bucket  string `yaml:"s3_bucket" env:"S3_BUCKET"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
}

// APNsConfig holds Apple push configuration
type APNsConfig struct {
	CertPath   string `yaml:"cert_path" env:"CERT_PATH"`
	CertSecret string `yaml:"cert_secret" env:"CERT_SECRET"`
	Topic      string `yaml:"topic" env:"TOPIC"`
	Production bool   `yaml:"production" env:"PRODUCTION"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret" env:"SECRET"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// CalendarConfig names the zone whose calendar defines "today"
type CalendarConfig struct {
	Timezone string `yaml:"timezone" env:"TIMEZONE"`
}

// DispatchConfig bounds notification delivery
type DispatchConfig struct {
	Attempts      int           `yaml:"attempts" env:"ATTEMPTS"`
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RatePerMinute int           `yaml:"rate_per_minute" env:"RATE_PER_MINUTE"`
}

// RemindersConfig schedules the daily check-in reminder
type RemindersConfig struct {
	Schedule string `yaml:"schedule" env:"SCHEDULE"`
}

// Default returns the configuration used when no file or variable overrides a value
func Default() Config {
	return Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8080},
		Storage: StorageConfig{
			Mode:  ModeLocal,
			Local: LocalConfig{Path: "duo-checkin.db"},
			Remote: DatabaseConfig{
				Host:        "localhost",
				Port:        5432,
				SSLMode:     "disable",
				CallTimeout: 5 * time.Second,
				MaxRetries:  3,
			},
		},
		Log:       LogConfig{Level: "info"},
		Calendar:  CalendarConfig{Timezone: "UTC"},
		Dispatch:  DispatchConfig{Attempts: 3, Timeout: 5 * time.Second, RatePerMinute: 6},
		Reminders: RemindersConfig{Schedule: "0 0 20 * * *"},
	}
}

// Load reads configuration from a YAML file and overlays DUO_* environment
// variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "DUO_"}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements
func (c *Config) Validate() error {
	switch c.Storage.Mode {
	case ModeLocal:
		if c.Storage.Local.Path == "" {
			return fmt.Errorf("storage.local.path is required in local mode")
		}
	case ModeRemote:
		if c.Storage.Remote.DBName == "" {
			return fmt.Errorf("storage.remote.dbname is required in remote mode")
		}
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in remote mode")
		}
	default:
		return fmt.Errorf("unknown storage mode %q", c.Storage.Mode)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the calendar timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Calendar.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar timezone: %w", err)
	}
	return loc, nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// S3Enabled reports whether meal image uploads are configured
func (c *AWSConfig) S3Enabled() bool {
	return c.S3Bucket != "" && c.Region != ""
}

// Enabled reports whether device push is configured
func (c *APNsConfig) Enabled() bool {
	return c.CertPath != "" && c.Topic != ""
}

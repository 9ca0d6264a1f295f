package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Logging  LoggingConfig  `json:"logging"`
	Redis    RedisConfig    `json:"redis"`
	Push     PushConfig     `json:"push"`
}

type ServerConfig struct {
	BindAddr string `json:"bindAddr"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type PushConfig struct {
	// Workers bounds concurrent notifier sends within one dispatch pass.
	Workers int `json:"workers"`
	// SendTimeout applies per outbound webhook call, e.g. "10s".
	SendTimeout string `json:"sendTimeout"`
	// PreviewLimit bounds the stored alert content preview in bytes.
	PreviewLimit int `json:"previewLimit"`
	// BootstrapFile seeds rules/robots/templates/channels from YAML, optional.
	BootstrapFile string `json:"bootstrapFile"`
	// AuthToken guards management routes when non-empty.
	AuthToken string `json:"authToken"`
	// IdempotencyTTL is how long a delivery mark lives in Redis, e.g. "2m".
	IdempotencyTTL string `json:"idempotencyTTL"`
}

func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()

	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "pushgate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "debug"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Push: PushConfig{
			Workers:        getEnvInt("PUSH_WORKERS", 16),
			SendTimeout:    getEnv("PUSH_SEND_TIMEOUT", "10s"),
			PreviewLimit:   getEnvInt("PUSH_PREVIEW_LIMIT", 1000),
			BootstrapFile:  getEnv("PUSH_BOOTSTRAP_FILE", ""),
			AuthToken:      getEnv("PUSH_AUTH_TOKEN", ""),
			IdempotencyTTL: getEnv("PUSH_IDEMPOTENCY_TTL", "2m"),
		},
	}

	if *configFile != "" {
		if err := loadFromFile(cfg, *configFile); err != nil {
			log.Err(err)
			return nil, err
		}
	}

	// fill reasonable defaults when fields omitted in file
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0:8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Push.Workers <= 0 {
		cfg.Push.Workers = 16
	}
	if cfg.Push.SendTimeout == "" {
		cfg.Push.SendTimeout = "10s"
	}
	if cfg.Push.PreviewLimit <= 0 {
		cfg.Push.PreviewLimit = 1000
	}
	if cfg.Push.IdempotencyTTL == "" {
		cfg.Push.IdempotencyTTL = "2m"
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

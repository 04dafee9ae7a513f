// Package config loads process configuration from the environment. A .env
// file in the working directory is read first.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
	log "github.com/sirupsen/logrus"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Port          int           `env:"PORT" envDefault:"8080"`
	StoreBackend  string        `env:"STORE_BACKEND" envDefault:"memory"`
	QueueSize     int           `env:"QUEUE_SIZE" envDefault:"1000"`
	SettleTimeout time.Duration `env:"SETTLE_TIMEOUT" envDefault:"5s"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:"text"`

	// HouseEdge is applied when a game is initialized at startup.
	HouseEdge uint8  `env:"HOUSE_EDGE" envDefault:"5"`
	Authority string `env:"GAME_AUTHORITY"`

	Database Database
	Redis    Redis
	NATS     NATS
}

type Database struct {
	Host       string `env:"BLUEPRINT_DB_HOST" envDefault:"localhost"`
	Port       string `env:"BLUEPRINT_DB_PORT" envDefault:"5432"`
	Name       string `env:"BLUEPRINT_DB_DATABASE" envDefault:"dicevault"`
	Username   string `env:"BLUEPRINT_DB_USERNAME" envDefault:"postgres"`
	Password   string `env:"BLUEPRINT_DB_PASSWORD"`
	Schema     string `env:"BLUEPRINT_DB_SCHEMA" envDefault:"public"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"dicevault.db"`
}

// DSN is the Postgres connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Name, d.Schema)
}

type Redis struct {
	Addr     string `env:"REDIS_URL" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// NATS publishing is off when URL is empty.
type NATS struct {
	URL     string `env:"NATS_URL"`
	Token   string `env:"NATS_TOKEN"`
	Subject string `env:"NATS_SUBJECT" envDefault:"dicevault.settlements"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendRedis, BackendPostgres, BackendSQLite:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.HouseEdge > 100 {
		return nil, fmt.Errorf("HOUSE_EDGE %d above 100", cfg.HouseEdge)
	}
	return cfg, nil
}

// SetupLogging applies LOG_LEVEL and LOG_FORMAT to the standard logrus
// logger.
func SetupLogging(cfg *Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", cfg.LogFormat)
	}
	return nil
}

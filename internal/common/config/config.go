package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StoreRedis = "redis"
	StoreMongo = "mongo"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Log struct {
		Format     string `env:"LOG_FORMAT" envDefault:"console"` // console, json
		File       string `env:"LOG_FILE"`
		MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
		MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	}

	Server struct {
		Port int `env:"HTTP_PORT" envDefault:"8080"`
	}

	// Хранилище документов: redis или mongo. Сессии диалогов всегда живут в Redis.
	Store struct {
		Driver string `env:"STORE_DRIVER" envDefault:"redis"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Mongo struct {
		URI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
		Database string `env:"MONGO_DATABASE" envDefault:"giveaway_bot"`
	}

	Telegram struct {
		BotToken    string        `env:"BOT_TOKEN,required,notEmpty"`
		AdminIDs    []int64       `env:"ADMIN_IDS" envSeparator:","`
		LogChannel  int64         `env:"LOG_CHANNEL" envDefault:"0"`
		PollTimeout time.Duration `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"10s"`
	}

	Subscription struct {
		DefaultEnabled bool `env:"FORCE_SUBSCRIBE_DEFAULT" envDefault:"false"`
		Strict         bool `env:"FORCE_SUBSCRIBE_STRICT" envDefault:"false"`
	}

	Broadcast struct {
		Workers          int `env:"BROADCAST_WORKERS" envDefault:"8"`
		RatePerSecond    int `env:"BROADCAST_RATE_PER_SEC" envDefault:"25"`
		MaxFloodRetries  int `env:"BROADCAST_MAX_FLOOD_RETRIES" envDefault:"3"`
		HistoryRetention int `env:"BROADCAST_HISTORY_SIZE" envDefault:"100"`
	}

	Session struct {
		TTL time.Duration `env:"SESSION_TTL" envDefault:"15m"`
	}
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// .env может отсутствовать: в production переменные задаются напрямую
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreRedis, StoreMongo:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreRedis, StoreMongo, c.Store.Driver)
	}
	if c.Store.Driver == StoreMongo && strings.TrimSpace(c.Mongo.URI) == "" {
		return fmt.Errorf("MONGO_URI is required when STORE_DRIVER=mongo")
	}
	if c.Broadcast.Workers < 1 {
		return fmt.Errorf("BROADCAST_WORKERS must be positive")
	}
	if c.Broadcast.MaxFloodRetries < 0 {
		return fmt.Errorf("BROADCAST_MAX_FLOOD_RETRIES cannot be negative")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}

func (c *Config) RedisAddr() string {
	return c.Redis.Host + ":" + strconv.Itoa(c.Redis.Port)
}

// Package config 从环境变量加载服务配置
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	Env      string `env:"APP_ENV" envDefault:"local"` // local / prod

	DBDriver      string `env:"DB_DRIVER" envDefault:"mysql"` // mysql / postgres
	DBDSN         string `env:"DB_DSN" envDefault:"user:password@tcp(127.0.0.1:3306)/community?charset=utf8mb4&parseTime=True"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	// RedisAddr 为空时 curated 列表只走数据库
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	OutboxSink     string        `env:"OUTBOX_SINK" envDefault:"log"` // log / kafka / nats
	OutboxInterval time.Duration `env:"OUTBOX_INTERVAL" envDefault:"1s"`
	KafkaBrokers   []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"127.0.0.1:9092"`
	KafkaTopic     string        `env:"KAFKA_TOPIC" envDefault:"social.relation"`
	NatsURL        string        `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	NatsSubject    string        `env:"NATS_SUBJECT" envDefault:"social.relation"`

	OtelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	NodeID       int64         `env:"NODE_ID" envDefault:"1"`
	TxMaxRetries int           `env:"TX_MAX_RETRIES" envDefault:"5"`
	FeedPageSize int           `env:"FEED_PAGE_SIZE" envDefault:"20"`
	CuratedTTL   time.Duration `env:"CURATED_TTL" envDefault:"6h"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5m"`

	AccessSecret string `env:"JWT_ACCESS_SECRET" envDefault:"secret-key"`
}

// Load 解析环境变量并做基本校验
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.OutboxSink {
	case "log", "kafka", "nats":
	default:
		return fmt.Errorf("unsupported OUTBOX_SINK %q", c.OutboxSink)
	}
	if c.TxMaxRetries <= 0 {
		return fmt.Errorf("TX_MAX_RETRIES must be positive, got %d", c.TxMaxRetries)
	}
	if c.FeedPageSize <= 0 {
		return fmt.Errorf("FEED_PAGE_SIZE must be positive, got %d", c.FeedPageSize)
	}
	return nil
}

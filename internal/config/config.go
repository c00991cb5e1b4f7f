package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Service    Service    `envconfig:"SERVICE"`
	Postgres   Postgres   `envconfig:"POSTGRES"`
	ClickHouse ClickHouse `envconfig:"CLICKHOUSE"`
	SQS        SQS        `envconfig:"SQS"`
	Consumer   Consumer   `envconfig:"CONSUMER"`
	Geo        Geo        `envconfig:"GEO"`
	CAPI       CAPI       `envconfig:"CAPI"`
	Shopify    Shopify    `envconfig:"SHOPIFY"`
}

type Service struct {
	Environment        string `envconfig:"ENVIRONMENT" required:"true"`
	APIPort            string `envconfig:"API_PORT" default:"8080"`
	LogLevel           string `envconfig:"LOG_LEVEL" default:"info"`
	ProbeTimeoutSec    int    `envconfig:"PROBE_TIMEOUT_SEC" default:"3"`
	ShutdownTimeoutSec int    `envconfig:"SHUTDOWN_TIMEOUT_SEC" default:"5"`
}

type Postgres struct {
	URL             string `envconfig:"URL" required:"true"`
	MaxOpenConns    int    `envconfig:"MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int    `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime int    `envconfig:"CONN_MAX_LIFETIME_SEC" default:"1800"`
	MigrateOnStart  bool   `envconfig:"MIGRATE_ON_START" default:"false"`
}

type ClickHouse struct {
	Host            string `envconfig:"HOST"`
	Port            string `envconfig:"PORT" default:"9000"`
	Database        string `envconfig:"DB" default:"default"`
	User            string `envconfig:"USER" default:""`
	Password        string `envconfig:"PASSWORD" default:""`
	UseTLS          bool   `envconfig:"USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CONN_MAX_LIFETIME_SEC" default:"3600"`
}

// Enabled reports whether the analytics archive is configured
func (c ClickHouse) Enabled() bool {
	return c.Host != ""
}

type SQS struct {
	Endpoint string `envconfig:"ENDPOINT"`
	QueueURL string `envconfig:"QUEUE_URL"`
	Region   string `envconfig:"REGION" default:"eu-central-1"`
}

// Enabled reports whether event export is configured
func (s SQS) Enabled() bool {
	return s.QueueURL != ""
}

type Consumer struct {
	BatchSizeMax    int    `envconfig:"BATCH_SIZE_MAX" default:"2000"`
	BatchTimeoutSec int    `envconfig:"BATCH_TIMEOUT_SEC" default:"10"`
	HealthCheckPort string `envconfig:"HEALTH_CHECK_PORT" default:"8081"`
}

type Geo struct {
	Enabled   bool   `envconfig:"ENABLED" default:"true"`
	BaseURL   string `envconfig:"BASE_URL" default:"http://ip-api.com"`
	TimeoutMS int    `envconfig:"TIMEOUT_MS" default:"2000"`
}

// Timeout returns the bounded lookup timeout
func (g Geo) Timeout() time.Duration {
	return time.Duration(g.TimeoutMS) * time.Millisecond
}

type CAPI struct {
	GraphURL   string `envconfig:"GRAPH_URL" default:"https://graph.facebook.com"`
	APIVersion string `envconfig:"API_VERSION" default:"v21.0"`
	TimeoutSec int    `envconfig:"TIMEOUT_SEC" default:"10"`
}

type Shopify struct {
	APISecret string `envconfig:"API_SECRET"`
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/config"
)

const (
	dialTimeout       = 5 * time.Second
	pingAttempts      = 5
	pingRetryInterval = 2 * time.Second
)

// Client holds the archive connection
type Client struct {
	conn driver.Conn
	log  *zap.Logger
}

// NewClient opens the archive connection and waits until ClickHouse answers a ping.
// The consumer often starts alongside ClickHouse, so the ping is retried a few times.
func NewClient(ctx context.Context, cfg *config.ClickHouse, log *zap.Logger) (*Client, error) {
	opts := options(cfg)

	log.Info("Connecting to ClickHouse archive",
		zap.Strings("addr", opts.Addr),
		zap.String("database", cfg.Database),
		zap.Bool("use_tls", cfg.UseTLS))

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	client := &Client{conn: conn, log: log}
	if err := client.waitReady(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	log.Info("ClickHouse archive ready")
	return client, nil
}

// options translates the environment configuration into driver options
func options(cfg *config.ClickHouse) *clickhouse.Options {
	opts := &clickhouse.Options{
		Addr: []string{net.JoinHostPort(cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 30,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:      dialTimeout,
		MaxOpenConns:     cfg.MaxOpenConns,
		MaxIdleConns:     cfg.MaxIdleConns,
		ConnMaxLifetime:  time.Duration(cfg.ConnMaxLifetime) * time.Second,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	}
	if cfg.UseTLS {
		opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

func (c *Client) waitReady(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if err = c.conn.Ping(ctx); err == nil {
			return nil
		}
		c.log.Warn("ClickHouse not ready",
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to ping ClickHouse: %w", ctx.Err())
		case <-time.After(pingRetryInterval):
		}
	}
	return fmt.Errorf("failed to ping ClickHouse after %d attempts: %w", pingAttempts, err)
}

// Conn returns the underlying ClickHouse connection
func (c *Client) Conn() driver.Conn {
	return c.conn
}

// Ping checks that the archive answers
func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}
	c.log.Info("ClickHouse connection closed")
	return nil
}

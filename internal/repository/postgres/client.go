// Package postgres implements the tenant gateway and event store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/config"
)

// Client wraps the PostgreSQL connection pool
type Client struct {
	db  *sql.DB
	log *zap.Logger
}

// NewClient opens the pool and verifies connectivity
func NewClient(ctx context.Context, cfg config.Postgres, log *zap.Logger) (*Client, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		log.Error("Failed to ping PostgreSQL", zap.Error(err))
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	log.Info("PostgreSQL connection established successfully",
		zap.Int("max_open_conns", cfg.MaxOpenConns))

	return &Client{db: db, log: log}, nil
}

// NewClientFromDB wraps an already opened pool
func NewClientFromDB(db *sql.DB, log *zap.Logger) *Client {
	return &Client{db: db, log: log}
}

// DB returns the underlying pool
func (c *Client) DB() *sql.DB {
	return c.db
}

// Ping checks if the database connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the connection pool
func (c *Client) Close() error {
	c.log.Info("Closing PostgreSQL connection")
	if err := c.db.Close(); err != nil {
		c.log.Error("Error closing PostgreSQL connection", zap.Error(err))
		return err
	}
	return nil
}

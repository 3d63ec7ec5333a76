package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/config"
)

// Client owns the connection used for install dedup reads and bulk inserts
type Client struct {
	connection driver.Conn
	config     *config.ClickHouse
	log        *zap.Logger
}

// NewClient dials ClickHouse and verifies the server and the install table before returning.
// A connection that fails verification is closed.
func NewClient(ctx context.Context, cfg *config.ClickHouse, log *zap.Logger) (*Client, error) {
	log.Info("Connecting to ClickHouse",
		zap.String("host", cfg.Host),
		zap.String("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("table", cfg.Table),
		zap.Bool("use_tls", cfg.UseTLS))

	connection, err := clickhouse.Open(connectionOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return newClient(ctx, connection, cfg, log)
}

func newClient(ctx context.Context, connection driver.Conn, cfg *config.ClickHouse, log *zap.Logger) (*Client, error) {
	c := &Client{connection: connection, config: cfg, log: log}

	if err := c.verify(ctx); err != nil {
		if closeErr := connection.Close(); closeErr != nil {
			log.Warn("Failed to close unverified ClickHouse connection", zap.Error(closeErr))
		}
		return nil, err
	}

	log.Info("ClickHouse connection ready", zap.String("table", cfg.Table))
	return c, nil
}

func (c *Client) verify(ctx context.Context) error {
	if err := c.connection.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if !c.config.CheckTable {
		return nil
	}

	var exists uint8
	if err := c.connection.QueryRow(ctx, "EXISTS TABLE "+quoteTable(c.config.Table)).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up install table %s: %w", c.config.Table, err)
	}
	if exists == 0 {
		return fmt.Errorf("install table %s not found in database %s", c.config.Table, c.config.Database)
	}
	return nil
}

func connectionOptions(cfg *config.ClickHouse) *clickhouse.Options {
	var tlsConfig *tls.Config
	if cfg.UseTLS {
		tlsConfig = &tls.Config{}
	}

	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": cfg.MaxExecutionSec,
		},
		TLS:              tlsConfig,
		DialTimeout:      cfg.DialTimeout(),
		MaxOpenConns:     cfg.MaxOpenConns,
		MaxIdleConns:     cfg.MaxIdleConns,
		ConnMaxLifetime:  cfg.ConnLifetime(),
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	}
}

// Conn returns the underlying ClickHouse connection
func (c *Client) Conn() driver.Conn {
	return c.connection
}

// Table returns the configured install table
func (c *Client) Table() string {
	return c.config.Table
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if err := c.connection.Close(); err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}
	c.log.Info("ClickHouse connection closed")
	return nil
}

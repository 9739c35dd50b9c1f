// Package database provides database client utilities.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD auth
)

// SQLConfig holds SQL Server configuration.
type SQLConfig struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	MaxLifetime      time.Duration
}

// DefaultSQLConfig returns sensible defaults.
func DefaultSQLConfig() SQLConfig {
	return SQLConfig{
		MaxOpenConns: 25,
		MaxIdleConns: 5,
		MaxLifetime:  5 * time.Minute,
	}
}

// SQLClient wraps a SQL database connection.
type SQLClient struct {
	db     *sql.DB
	config SQLConfig
}

// NewSQLClient opens and verifies a SQL Server connection.
func NewSQLClient(ctx context.Context, config SQLConfig) (*SQLClient, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("sql connection string is empty")
	}

	db, err := sql.Open("sqlserver", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.MaxLifetime > 0 {
		db.SetConnMaxLifetime(config.MaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLClient{
		db:     db,
		config: config,
	}, nil
}

// DB returns the underlying sql.DB instance.
func (c *SQLClient) DB() *sql.DB {
	return c.db
}

// Ping checks the database connection.
func (c *SQLClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// PingContext checks the database connection.
func (c *SQLClient) PingContext(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *SQLClient) Close() error {
	return c.db.Close()
}

// Exec executes a query without returning results.
func (c *SQLClient) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// Query executes a query and returns rows.
func (c *SQLClient) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query and returns a single row.
func (c *SQLClient) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

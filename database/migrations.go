package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Migration represents a single migration.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

// Migrator handles database migrations.
type Migrator struct {
	db         *SQLClient
	tableName  string
	migrations []Migration
}

// MigratorOption configures the migrator.
type MigratorOption func(*Migrator)

// WithTableName sets the migrations tracking table name.
func WithTableName(name string) MigratorOption {
	return func(m *Migrator) {
		m.tableName = name
	}
}

// NewMigrator creates a new migrator.
func NewMigrator(db *SQLClient, opts ...MigratorOption) *Migrator {
	m := &Migrator{
		db:        db,
		tableName: "_migrations",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddMigration registers a migration.
func (m *Migrator) AddMigration(version int, name, up, down string) {
	m.migrations = append(m.migrations, Migration{
		Version:    version,
		Name:       name,
		UpScript:   up,
		DownScript: down,
	})
	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
}

// Migrations returns the registered migrations in version order.
func (m *Migrator) Migrations() []Migration {
	return m.migrations
}

// Initialize creates the migrations tracking table.
func (m *Migrator) Initialize(ctx context.Context) error {
	query := fmt.Sprintf(`
		IF NOT EXISTS (SELECT * FROM sysobjects WHERE name='%s' AND xtype='U')
		CREATE TABLE %s (
			version INT PRIMARY KEY,
			name NVARCHAR(255) NOT NULL,
			executed_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
		)`, m.tableName, m.tableName)

	_, err := m.db.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// Version returns the highest applied migration version, or 0.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	var version int
	query := fmt.Sprintf("SELECT ISNULL(MAX(version), 0) FROM %s", m.tableName)
	if err := m.db.QueryRow(ctx, query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, nil
}

// Up applies all pending migrations and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.Initialize(ctx); err != nil {
		return 0, err
	}

	current, err := m.Version(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}
		if err := m.run(ctx, migration); err != nil {
			return applied, fmt.Errorf("migration %d (%s) failed: %w",
				migration.Version, migration.Name, err)
		}
		applied++
	}
	return applied, nil
}

func (m *Migrator) run(ctx context.Context, migration Migration) error {
	tx, err := m.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(migration.UpScript) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	record := fmt.Sprintf("INSERT INTO %s (version, name, executed_at) VALUES (@p1, @p2, @p3)", m.tableName)
	if _, err := tx.ExecContext(ctx, record, migration.Version, migration.Name, time.Now().UTC()); err != nil {
		return err
	}

	return tx.Commit()
}

// splitStatements splits a script on GO batch separators.
func splitStatements(script string) []string {
	var statements []string
	for _, part := range strings.Split(script, "\nGO") {
		part = strings.TrimSpace(part)
		if part != "" {
			statements = append(statements, part)
		}
	}
	return statements
}

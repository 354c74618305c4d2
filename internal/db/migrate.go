package db

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigratorDB is the slice of the pgx pool the migrator needs. pgxmock
// satisfies it in tests.
type MigratorDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Migrator applies the embedded schema migrations
type Migrator struct {
	db MigratorDB
}

// NewMigrator creates a migration runner
func NewMigrator(db MigratorDB) *Migrator {
	return &Migrator{db: db}
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			applied_at  TIMESTAMPTZ DEFAULT NOW(),
			description TEXT
		)`)
	return err
}

// CurrentVersion returns the highest applied migration version
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.db.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// loadMigrations parses the embedded NNN_description.sql files, sorted by
// version
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		name := entry.Name()
		content, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		var version int
		var description string
		if _, err := fmt.Sscanf(name, "%d_%s", &version, &description); err != nil {
			return nil, fmt.Errorf("invalid migration filename %s (want NNN_description.sql)", name)
		}
		description = strings.ReplaceAll(strings.TrimSuffix(description, ".sql"), "_", " ")

		migrations = append(migrations, Migration{
			Version:     version,
			Description: description,
			SQL:         string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrate applies every pending migration, each in its own transaction
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return 0, err
	}

	migrations, err := loadMigrations()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}
		if err := m.apply(ctx, migration); err != nil {
			return applied, fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
		applied++
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, migration Migration) error {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_version (version, description) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING",
		migration.Version, migration.Description); err != nil {
		return fmt.Errorf("failed to record migration version: %w", err)
	}
	return tx.Commit(ctx)
}

// Status lists every embedded migration with its applied state
func (m *Migrator) Status(ctx context.Context) ([]map[string]any, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return nil, err
	}
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	migrations, err := loadMigrations()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(migrations))
	for _, migration := range migrations {
		status := "pending"
		if migration.Version <= current {
			status = "applied"
		}
		out = append(out, map[string]any{
			"version":     migration.Version,
			"description": migration.Description,
			"status":      status,
		})
	}
	return out, nil
}

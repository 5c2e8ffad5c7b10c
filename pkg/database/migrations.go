package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect selects the SQL flavour the migrations are rendered for.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// Migration represents a database schema migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(255) NOT NULL UNIQUE,
					fullname VARCHAR(255) NOT NULL,
					password_hash TEXT NOT NULL,
					role VARCHAR(32) NOT NULL DEFAULT 'USER',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					must_change_password BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					CHECK (role IN ('SUPER_ADMIN', 'CONTENT_ADMIN', 'USER'))
				);
			`,
		},
		{
			Version:     2,
			Description: "Create groups and memberships",
			SQL: `
				CREATE TABLE IF NOT EXISTS access_groups (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(50) NOT NULL UNIQUE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS user_groups (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					group_id BIGINT NOT NULL REFERENCES access_groups(id) ON DELETE CASCADE,
					added_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, group_id)
				);

				CREATE INDEX IF NOT EXISTS idx_user_groups_group ON user_groups(group_id);
			`,
		},
		{
			Version:     3,
			Description: "Create folders and files",
			SQL: `
				CREATE TABLE IF NOT EXISTS folders (
					id BIGSERIAL PRIMARY KEY,
					folder_name VARCHAR(255) NOT NULL,
					parent_id BIGINT REFERENCES folders(id) ON DELETE CASCADE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders(parent_id);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_folders_sibling_name ON folders(folder_name, COALESCE(parent_id, 0));

				CREATE TABLE IF NOT EXISTS files (
					id BIGSERIAL PRIMARY KEY,
					document_name VARCHAR(255) NOT NULL,
					file_name VARCHAR(255) NOT NULL UNIQUE,
					preview_file_name VARCHAR(255),
					type VARCHAR(32) NOT NULL,
					mime_type VARCHAR(255) NOT NULL,
					size BIGINT NOT NULL DEFAULT 0,
					folder_id BIGINT NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
					ticket_number VARCHAR(64) NOT NULL DEFAULT '',
					version VARCHAR(32) NOT NULL DEFAULT '',
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					UNIQUE (folder_id, document_name)
				);

				CREATE INDEX IF NOT EXISTS idx_files_folder ON files(folder_id);
				CREATE INDEX IF NOT EXISTS idx_files_type ON files(type);
			`,
		},
		{
			Version:     4,
			Description: "Create group permission grants",
			SQL: `
				CREATE TABLE IF NOT EXISTS folder_group_permissions (
					folder_id BIGINT NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
					group_id BIGINT NOT NULL REFERENCES access_groups(id) ON DELETE CASCADE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					PRIMARY KEY (folder_id, group_id)
				);

				CREATE INDEX IF NOT EXISTS idx_folder_group_permissions_group ON folder_group_permissions(group_id);

				CREATE TABLE IF NOT EXISTS file_group_permissions (
					file_id BIGINT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
					group_id BIGINT NOT NULL REFERENCES access_groups(id) ON DELETE CASCADE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					PRIMARY KEY (file_id, group_id)
				);

				CREATE INDEX IF NOT EXISTS idx_file_group_permissions_group ON file_group_permissions(group_id);
			`,
		},
	}
}

var sqliteReplacer = strings.NewReplacer(
	"BIGSERIAL PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT",
	"TIMESTAMP WITH TIME ZONE", "TIMESTAMP",
	"NOW()", "CURRENT_TIMESTAMP",
)

// Render returns the migration SQL for the given dialect.
func (m Migration) Render(dialect Dialect) string {
	if dialect == SQLite {
		return sqliteReplacer.Replace(m.SQL)
	}
	return m.SQL
}

// Migrate applies all pending migrations and returns the versions it applied.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) ([]int, error) {
	_, err := db.ExecContext(ctx, Migration{SQL: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`}.Render(dialect))
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	var applied []int
	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.Render(dialect)); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
				migration.Version, migration.Description,
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}
		applied = append(applied, migration.Version)
	}

	return applied, nil
}

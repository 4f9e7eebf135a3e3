package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Migrations holds the schema of both services, one directory per service
//
//go:embed migrations
var Migrations embed.FS

// Migration directories inside Migrations
const (
	KitchenMigrations = "migrations/kitchen"
	OrderMigrations   = "migrations/order"
)

// RunMigrations applies every not yet applied .sql file of dir in name order
func (db *DB) RunMigrations(ctx context.Context, fsys fs.FS, dir string) error {
	if err := db.Exec(ctx, CreateMigrationsTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := migrationFiles(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to list migration files: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, name := range files {
		if applied[name] {
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		if err := db.applyMigration(ctx, name, string(content)); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", name, err)
		}

		db.logger.Info("migration_applied", fmt.Sprintf("Applied migration: %s", name), "startup", map[string]interface{}{
			"dir": dir,
		})
	}

	return nil
}

// migrationFiles returns the sorted .sql file names directly under dir
func migrationFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func (db *DB) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	applied := make(map[string]bool)

	rows, err := db.Query(ctx, SelectAppliedMigrationsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}

	return applied, rows.Err()
}

// applyMigration executes the migration and records it in one transaction
func (db *DB) applyMigration(ctx context.Context, name, sql string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	if _, err := tx.Exec(ctx, InsertMigrationSQL, name); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit(ctx)
}

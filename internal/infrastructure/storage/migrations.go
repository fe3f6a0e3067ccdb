package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_reconcile_runs_table",
		Up:      migration002AddReconcileRunsTable,
	},
	{
		Version: 3,
		Name:    "add_categories_table",
		Up:      migration003AddCategoriesTable,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// ================================================================
// MIGRATION FUNCTIONS
// ================================================================

// migration001InitialSchema creates the orders, order_items and
// transactions tables
func migration001InitialSchema(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			order_date TEXT NOT NULL,
			total_amount REAL NOT NULL DEFAULT 0,
			payment_method TEXT,
			status TEXT,
			imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS order_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			price REAL NOT NULL DEFAULT 0,
			quantity INTEGER NOT NULL DEFAULT 1,
			category TEXT,
			asin TEXT,
			seller TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			transaction_id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			amount REAL NOT NULL DEFAULT 0,
			description TEXT,
			merchant_name TEXT,
			category TEXT,
			category_confidence INTEGER NOT NULL DEFAULT 0,
			confidence INTEGER NOT NULL DEFAULT 0,
			verified BOOLEAN NOT NULL DEFAULT 0,
			amazon_order_id TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_order_items_order_id
		 ON order_items(order_id)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_date
		 ON transactions(date)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_amazon_order_id
		 ON transactions(amazon_order_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration002AddReconcileRunsTable creates the reconcile_runs table
func migration002AddReconcileRunsTable(db *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS reconcile_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP,
		total INTEGER DEFAULT 0,
		succeeded INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		errored INTEGER DEFAULT 0,
		status TEXT DEFAULT 'running'
	)`

	_, err := db.Exec(query)
	return err
}

// migration003AddCategoriesTable creates the categories table
func migration003AddCategoriesTable(db *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS categories (
		name TEXT PRIMARY KEY,
		parent TEXT
	)`

	_, err := db.Exec(query)
	return err
}

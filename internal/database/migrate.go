package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration is one forward-only schema step.  Statements run in order;
// MySQL commits DDL implicitly, so a step must be safe to re-run up to its
// last statement.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// Migrate applies every pending migration of the dialect.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) (int, error) {
	return MigrateTo(ctx, db, d, 0)
}

// MigrateTo applies pending migrations up to and including target
// (0 means latest).  It returns the resulting schema version.
func MigrateTo(ctx context.Context, db *sql.DB, d Dialect, target int) (int, error) {
	const ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER NOT NULL PRIMARY KEY,
		name       VARCHAR(100) NOT NULL,
		applied_at VARCHAR(40) NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return 0, err
	}

	for _, m := range d.Migrations() {
		if m.Version <= current {
			continue
		}
		if target > 0 && m.Version > target {
			break
		}
		if err := apply(ctx, db, m); err != nil {
			return current, err
		}
		current = m.Version
	}
	return current, nil
}

// CurrentVersion returns the highest applied migration, 0 for a fresh database.
func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	const rec = `INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, rec, m.Version, m.Name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (MySQL) Migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_class_sessions",
			Statements: []string{`CREATE TABLE IF NOT EXISTS class_sessions (
				id                 BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
				class_id           BIGINT UNSIGNED NOT NULL,
				session_date       DATE NOT NULL,
				start_time         TIME NOT NULL,
				end_time           TIME NOT NULL,
				capacity           INT NOT NULL,
				remaining_capacity INT NOT NULL,
				status             ENUM('active','inactive') NOT NULL DEFAULT 'active',
				created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
				UNIQUE KEY uq_class_sessions_slot (class_id, session_date, start_time, end_time),
				KEY idx_class_sessions_class_date (class_id, session_date, status),
				CONSTRAINT chk_class_sessions_capacity CHECK (capacity >= 1),
				CONSTRAINT chk_class_sessions_remaining CHECK (remaining_capacity >= 0 AND remaining_capacity <= capacity)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
		},
		{
			Version: 2,
			Name:    "add_product_id",
			Statements: []string{
				`ALTER TABLE class_sessions ADD COLUMN product_id BIGINT UNSIGNED NULL AFTER class_id`,
				`CREATE UNIQUE INDEX uq_class_sessions_product ON class_sessions (product_id)`,
			},
		},
		{
			Version: 3,
			Name:    "create_ledger_tables",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS order_line_completions (
					order_id     VARCHAR(64) NOT NULL,
					line_no      INT NOT NULL,
					session_id   BIGINT UNSIGNED NULL,
					quantity     INT NOT NULL,
					status       VARCHAR(16) NOT NULL,
					reason       VARCHAR(255) NOT NULL DEFAULT '',
					completed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (order_id, line_no)
				) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
				`CREATE TABLE IF NOT EXISTS schedule_locks (
					class_id     BIGINT UNSIGNED NOT NULL,
					session_date DATE NOT NULL,
					version      BIGINT NOT NULL DEFAULT 0,
					PRIMARY KEY (class_id, session_date)
				) ENGINE=InnoDB`,
			},
		},
	}
}

func (SQLite) Migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_class_sessions",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS class_sessions (
					id                 INTEGER PRIMARY KEY AUTOINCREMENT,
					class_id           INTEGER NOT NULL,
					session_date       TEXT NOT NULL,
					start_time         TEXT NOT NULL,
					end_time           TEXT NOT NULL,
					capacity           INTEGER NOT NULL CHECK (capacity >= 1),
					remaining_capacity INTEGER NOT NULL CHECK (remaining_capacity >= 0 AND remaining_capacity <= capacity),
					status             TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','inactive')),
					created_at         TEXT NOT NULL,
					updated_at         TEXT NOT NULL,
					UNIQUE (class_id, session_date, start_time, end_time)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_class_sessions_class_date ON class_sessions (class_id, session_date, status)`,
			},
		},
		{
			Version: 2,
			Name:    "add_product_id",
			Statements: []string{
				`ALTER TABLE class_sessions ADD COLUMN product_id INTEGER NULL`,
				`CREATE UNIQUE INDEX IF NOT EXISTS uq_class_sessions_product ON class_sessions (product_id)`,
			},
		},
		{
			Version: 3,
			Name:    "create_ledger_tables",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS order_line_completions (
					order_id     TEXT NOT NULL,
					line_no      INTEGER NOT NULL,
					session_id   INTEGER NULL,
					quantity     INTEGER NOT NULL,
					status       TEXT NOT NULL,
					reason       TEXT NOT NULL DEFAULT '',
					completed_at TEXT NOT NULL,
					PRIMARY KEY (order_id, line_no)
				)`,
				`CREATE TABLE IF NOT EXISTS schedule_locks (
					class_id     INTEGER NOT NULL,
					session_date TEXT NOT NULL,
					version      INTEGER NOT NULL DEFAULT 0,
					PRIMARY KEY (class_id, session_date)
				)`,
			},
		},
	}
}

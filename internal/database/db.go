package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Options selects the driver and its connection parameters.
type Options struct {
	Driver     string // "mysql" or "sqlite"
	User       string
	Pass       string
	Host       string
	Port       string
	Name       string
	SQLitePath string
}

// Open connects to the configured database, verifies the connection and
// returns the dialect that matches the driver.
func Open(opts Options) (*sql.DB, Dialect, error) {
	switch opts.Driver {
	case "", DriverMySQL:
		db, err := openMySQL(opts.User, opts.Pass, opts.Host, opts.Port, opts.Name)
		if err != nil {
			return nil, nil, err
		}
		return db, MySQL{}, nil
	case DriverSQLite:
		db, err := OpenSQLite(opts.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, SQLite{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", opts.Driver)
	}
}

// openMySQL connects to MySQL and verifies the connection.
func openMySQL(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	// clientFoundRows=true -> RowsAffected counts matched rows, so an UPDATE
	// that leaves a row unchanged is not mistaken for a missing row
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file.  A single
// connection serialises writers so the conditional updates behave the same
// as on MySQL row locks.
func OpenSQLite(path string) (*sql.DB, error) {
	if path == "" {
		path = "class-booking.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Ping with timeout
func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

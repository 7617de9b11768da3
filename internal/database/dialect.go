package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Dialect captures the few statements and error shapes that differ between
// the supported drivers.  Everything else is portable SQL.
type Dialect interface {
	Name() string
	// Migrations lists the schema steps in ascending version order.
	Migrations() []Migration
	// LockScheduleSQL upserts the (class_id, session_date) lock row so the
	// calling transaction holds a write lock on it until commit.
	LockScheduleSQL() string
	// IsDuplicate reports whether err is a unique-key violation.
	IsDuplicate(err error) bool
	// LockingRead is appended to SELECTs that must see the latest committed
	// rows rather than the transaction's snapshot.
	LockingRead() string
}

// MySQL is the production dialect.
type MySQL struct{}

func (MySQL) Name() string { return DriverMySQL }

func (MySQL) LockScheduleSQL() string {
	return `INSERT INTO schedule_locks (class_id, session_date, version) VALUES (?, ?, 1)
	        ON DUPLICATE KEY UPDATE version = version + 1`
}

// InnoDB serves plain SELECTs from the snapshot taken at the first read of
// a REPEATABLE READ transaction; FOR UPDATE reads the current rows.
func (MySQL) LockingRead() string { return " FOR UPDATE" }

// 1062 = ER_DUP_ENTRY
func (MySQL) IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// SQLite is the embedded dialect used for single-node installs and tests.
type SQLite struct{}

func (SQLite) Name() string { return DriverSQLite }

func (SQLite) LockScheduleSQL() string {
	return `INSERT INTO schedule_locks (class_id, session_date, version) VALUES (?, ?, 1)
	        ON CONFLICT (class_id, session_date) DO UPDATE SET version = version + 1`
}

// A SQLite writer holds the database lock, so every read is current.
func (SQLite) LockingRead() string { return "" }

func (SQLite) IsDuplicate(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	// primary result code only (extended codes disabled)
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}

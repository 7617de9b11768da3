package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_FreshDatabase(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	v, err := Migrate(ctx, db, SQLite{})
	require.NoError(t, err)
	assert.Equal(t, len(SQLite{}.Migrations()), v)

	again, err := Migrate(ctx, db, SQLite{})
	require.NoError(t, err)
	assert.Equal(t, v, again, "re-running is a no-op")

	for _, table := range []string{"class_sessions", "order_line_completions", "schedule_locks"} {
		var n int
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestMigrate_UpgradeKeepsRows(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	v, err := MigrateTo(ctx, db, SQLite{}, 1)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	_, err = db.ExecContext(ctx, `INSERT INTO class_sessions
		(class_id, session_date, start_time, end_time, capacity, remaining_capacity, status, created_at, updated_at)
		VALUES (1, '2026-05-04', '10:00:00', '11:00:00', 10, 7, 'active', '2026-01-01 00:00:00', '2026-01-01 00:00:00')`)
	require.NoError(t, err)

	v, err = Migrate(ctx, db, SQLite{})
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	var remaining int
	var product sql.NullInt64
	err = db.QueryRowContext(ctx, `SELECT remaining_capacity, product_id FROM class_sessions WHERE class_id = 1`).
		Scan(&remaining, &product)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)
	assert.False(t, product.Valid, "existing rows get a NULL product id")

	cur, err := CurrentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 3, cur)
}

func TestSQLite_IsDuplicate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := Migrate(ctx, db, SQLite{})
	require.NoError(t, err)

	insert := `INSERT INTO class_sessions
		(class_id, session_date, start_time, end_time, capacity, remaining_capacity, status, created_at, updated_at)
		VALUES (2, '2026-05-04', '10:00:00', '11:00:00', 5, 5, 'active', 'x', 'x')`
	_, err = db.ExecContext(ctx, insert)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert)
	require.Error(t, err)
	assert.True(t, SQLite{}.IsDuplicate(err))

	assert.False(t, SQLite{}.IsDuplicate(errors.New("boom")))
}

func TestMySQL_IsDuplicate(t *testing.T) {
	assert.True(t, MySQL{}.IsDuplicate(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, MySQL{}.IsDuplicate(&mysql.MySQLError{Number: 1213}))
	assert.False(t, MySQL{}.IsDuplicate(sql.ErrNoRows))
}

func TestLockScheduleSQL_Upserts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := Migrate(ctx, db, SQLite{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := db.ExecContext(ctx, SQLite{}.LockScheduleSQL(), 9, "2026-05-04")
		require.NoError(t, err)
	}
	var version int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT version FROM schedule_locks WHERE class_id = 9`).Scan(&version))
	assert.Equal(t, 3, version)
}

func TestLockingRead(t *testing.T) {
	assert.Equal(t, " FOR UPDATE", MySQL{}.LockingRead())
	assert.Empty(t, SQLite{}.LockingRead())
}

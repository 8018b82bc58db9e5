package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Signal/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "signal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newPostgresDB connects to SIGNAL_TEST_PG_DSN and empties the tables; the
// test is skipped when the variable is unset.
func newPostgresDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("SIGNAL_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SIGNAL_TEST_PG_DSN not set")
	}
	db, err := Open(context.Background(), DriverPostgres, dsn)
	require.NoError(t, err)
	truncate := func() {
		_, err := db.db.Exec(`TRUNCATE callings, users`)
		require.NoError(t, err)
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		_ = db.Close()
	})
	return db
}

// forEachDriver runs fn against sqlite and, when configured, Postgres.
func forEachDriver(t *testing.T, fn func(t *testing.T, db *DB)) {
	t.Run(DriverSQLite, func(t *testing.T) { fn(t, newTestDB(t)) })
	t.Run(DriverPostgres, func(t *testing.T) { fn(t, newPostgresDB(t)) })
}

func seedUsers(t *testing.T, db *DB, ids ...string) {
	t.Helper()
	users := NewUsers(db)
	for _, id := range ids {
		_, err := users.CreateUser(context.Background(), domain.User{ID: domain.UserID(id), DeviceToken: "token-" + id})
		require.NoError(t, err)
	}
}

func countOpen(t *testing.T, db *DB, user string) int {
	t.Helper()
	var n int
	require.NoError(t, db.db.QueryRow(db.q(
		`SELECT COUNT(*) FROM callings WHERE user_id = ? AND calling_to IS NULL`), user).Scan(&n))
	return n
}

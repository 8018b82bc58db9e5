package storage

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type errClass int

const (
	classOther errClass = iota
	classForeignKey
	classUnique
	classRetry
)

// dialect hides the differences between the two supported engines.
type dialect interface {
	name() string
	schema() []string
	// rebind rewrites ? placeholders into the engine's syntax.
	rebind(query string) string
	txOptions() *sql.TxOptions
	// lockSuffix is appended to selects that must lock the rows they read.
	lockSuffix() string
	classify(err error) errClass
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, "":
		return sqliteDialect{}, nil
	case DriverPostgres:
		return postgresDialect{}, nil
	default:
		return nil, errors.New("unsupported storage driver: " + driver)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) name() string { return DriverSQLite }

func (sqliteDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id      TEXT PRIMARY KEY CHECK (length(user_id) <= 45),
			device_token TEXT,
			name         TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS callings (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id      TEXT NOT NULL,
			user_id      TEXT NOT NULL REFERENCES users(user_id),
			calling_from INTEGER NOT NULL,
			calling_to   INTEGER
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS callings_one_open ON callings(user_id) WHERE calling_to IS NULL`,
		`CREATE INDEX IF NOT EXISTS callings_room_open ON callings(room_id) WHERE calling_to IS NULL`,
	}
}

func (sqliteDialect) rebind(query string) string { return query }

// Transactions take the write lock at BEGIN (_txlock=immediate), which
// serializes writers without an isolation level option.
func (sqliteDialect) txOptions() *sql.TxOptions { return nil }

func (sqliteDialect) lockSuffix() string { return "" }

func (sqliteDialect) classify(err error) errClass {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return classOther
	}
	code := se.Code()
	switch {
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return classForeignKey
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return classUnique
	case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
		return classRetry
	case code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "FOREIGN KEY"):
		return classForeignKey
	}
	return classOther
}

// sqliteDSN adds the connection pragmas the ledger relies on unless the
// caller already chose them.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") || strings.Contains(dsn, "_txlock=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

type postgresDialect struct{}

func (postgresDialect) name() string { return DriverPostgres }

func (postgresDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id      VARCHAR(45) PRIMARY KEY,
			device_token VARCHAR(1000),
			name         VARCHAR(100)
		)`,
		`CREATE TABLE IF NOT EXISTS callings (
			seq          BIGSERIAL PRIMARY KEY,
			room_id      VARCHAR(45) NOT NULL,
			user_id      VARCHAR(45) NOT NULL REFERENCES users(user_id),
			calling_from BIGINT NOT NULL,
			calling_to   BIGINT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS callings_one_open ON callings(user_id) WHERE calling_to IS NULL`,
		`CREATE INDEX IF NOT EXISTS callings_room_open ON callings(room_id) WHERE calling_to IS NULL`,
	}
}

func (postgresDialect) rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (postgresDialect) txOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelSerializable}
}

func (postgresDialect) lockSuffix() string { return " FOR UPDATE" }

func (postgresDialect) classify(err error) errClass {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return classOther
	}
	switch pqErr.Code {
	case "23503":
		return classForeignKey
	case "23505":
		return classUnique
	case "40001", "40P01":
		return classRetry
	}
	return classOther
}

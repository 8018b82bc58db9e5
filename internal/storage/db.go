package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const maxTxAttempts = 5

var errRetriesExhausted = errors.New("transaction retries exhausted")

// DB is the SQL store behind the call ledger and the user directory.
type DB struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// Open connects to driver/dsn and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if d.name() == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(d.name(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := ping(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	store := &DB{db: db, dialect: d, now: time.Now}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("module", "storage").Str("driver", d.name()).Msg("database ready")
	return store, nil
}

func ping(ctx context.Context, db *sql.DB) error {
	var err error
	for i := 0; i < 10; i++ {
		pctx, cancel := context.WithTimeout(ctx, 4*time.Second)
		err = db.PingContext(pctx)
		cancel()
		if err == nil {
			return nil
		}
		log.Warn().Str("module", "storage").Err(err).Int("attempt", i+1).Msg("database not reachable yet")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("ping database: %w", err)
}

func (d *DB) migrate(ctx context.Context) error {
	for _, stmt := range d.dialect.schema() {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *DB) q(query string) string { return d.dialect.rebind(query) }

func (d *DB) millis() int64 { return d.now().UnixMilli() }

// inTx runs fn in a transaction, retrying serialization failures.
func (d *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := d.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if d.dialect.classify(err) != classRetry {
			return err
		}
		lastErr = err
		log.Debug().Str("module", "storage").Err(err).Int("attempt", attempt).Msg("retrying transaction")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * 5 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: %w", errRetriesExhausted, lastErr)
}

func (d *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, d.dialect.txOptions())
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

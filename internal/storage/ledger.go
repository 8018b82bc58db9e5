package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dkeye/Signal/internal/core"
	"github.com/dkeye/Signal/internal/domain"
)

// Ledger is the SQL implementation of core.Ledger over the callings table.
// Records are never deleted; presence ends by setting calling_to.
type Ledger struct {
	db *DB
}

var _ core.Ledger = (*Ledger)(nil)

func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Open(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	err := l.db.inTx(ctx, func(tx *sql.Tx) error {
		now := l.db.millis()
		if err := l.closeOpen(ctx, tx, user, now); err != nil {
			return err
		}
		return l.insert(ctx, tx, room, user, now)
	})
	return l.wrap(user, err)
}

func (l *Ledger) OpenAndListOthers(ctx context.Context, room domain.RoomID, user domain.UserID) ([]domain.UserID, error) {
	var others []domain.UserID
	err := l.db.inTx(ctx, func(tx *sql.Tx) error {
		others = others[:0]
		rows, err := tx.QueryContext(ctx, l.db.q(
			`SELECT user_id FROM callings WHERE room_id = ? AND user_id <> ? AND calling_to IS NULL ORDER BY seq`+l.db.dialect.lockSuffix()),
			string(room), string(user))
		if err != nil {
			return err
		}
		defer rows.Close()

		seen := make(map[domain.UserID]struct{})
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			if _, dup := seen[domain.UserID(id)]; dup {
				continue
			}
			seen[domain.UserID(id)] = struct{}{}
			others = append(others, domain.UserID(id))
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		now := l.db.millis()
		if err := l.closeOpen(ctx, tx, user, now); err != nil {
			return err
		}
		return l.insert(ctx, tx, room, user, now)
	})
	if err != nil {
		return nil, l.wrap(user, err)
	}
	if others == nil {
		others = []domain.UserID{}
	}
	return others, nil
}

func (l *Ledger) Close(ctx context.Context, user domain.UserID) error {
	err := l.db.inTx(ctx, func(tx *sql.Tx) error {
		return l.closeOpen(ctx, tx, user, l.db.millis())
	})
	return l.wrap(user, err)
}

func (l *Ledger) FindLastRoom(ctx context.Context, user domain.UserID) (domain.RoomID, bool, error) {
	var room string
	err := l.db.db.QueryRowContext(ctx, l.db.q(
		`SELECT room_id FROM callings WHERE user_id = ? ORDER BY calling_from DESC, seq DESC LIMIT 1`),
		string(user)).Scan(&room)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, l.wrap(user, err)
	}
	return domain.RoomID(room), true, nil
}

// ReopenLastRoom marks the user's most recent record present again. Any
// other open record of the user is closed first.
func (l *Ledger) ReopenLastRoom(ctx context.Context, user domain.UserID) (domain.RoomID, bool, error) {
	var (
		room  string
		found bool
	)
	err := l.db.inTx(ctx, func(tx *sql.Tx) error {
		var (
			seq       int64
			callingTo sql.NullInt64
		)
		err := tx.QueryRowContext(ctx, l.db.q(
			`SELECT seq, room_id, calling_to FROM callings WHERE user_id = ? ORDER BY calling_from DESC, seq DESC LIMIT 1`+l.db.dialect.lockSuffix()),
			string(user)).Scan(&seq, &room, &callingTo)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		if !callingTo.Valid {
			return nil
		}
		if err := l.closeOpen(ctx, tx, user, l.db.millis()); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, l.db.q(`UPDATE callings SET calling_to = NULL WHERE seq = ?`), seq)
		return err
	})
	if err != nil {
		return "", false, l.wrap(user, err)
	}
	if !found {
		return "", false, nil
	}
	return domain.RoomID(room), true, nil
}

func (l *Ledger) IsOpen(ctx context.Context, user domain.UserID) (bool, error) {
	return l.exists(ctx, user,
		`SELECT 1 FROM callings WHERE user_id = ? AND calling_to IS NULL LIMIT 1`, string(user))
}

func (l *Ledger) IsOpenInRoom(ctx context.Context, user domain.UserID, room domain.RoomID) (bool, error) {
	return l.exists(ctx, user,
		`SELECT 1 FROM callings WHERE user_id = ? AND room_id = ? AND calling_to IS NULL LIMIT 1`, string(user), string(room))
}

// History returns the user's records, newest first.
func (l *Ledger) History(ctx context.Context, user domain.UserID, limit int) ([]domain.CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.db.QueryContext(ctx, l.db.q(
		`SELECT seq, room_id, user_id, calling_from, calling_to FROM callings WHERE user_id = ? ORDER BY calling_from DESC, seq DESC LIMIT ?`),
		string(user), limit)
	if err != nil {
		return nil, l.wrap(user, err)
	}
	defer rows.Close()

	out := []domain.CallRecord{}
	for rows.Next() {
		var (
			rec       domain.CallRecord
			room, uid string
			from      int64
			to        sql.NullInt64
		)
		if err := rows.Scan(&rec.Seq, &room, &uid, &from, &to); err != nil {
			return nil, l.wrap(user, err)
		}
		rec.Room, rec.User = domain.RoomID(room), domain.UserID(uid)
		rec.CallingFrom = fromMillis(from)
		if to.Valid {
			t := fromMillis(to.Int64)
			rec.CallingTo = &t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, l.wrap(user, err)
	}
	return out, nil
}

func (l *Ledger) exists(ctx context.Context, user domain.UserID, query string, args ...any) (bool, error) {
	var one int
	err := l.db.db.QueryRowContext(ctx, l.db.q(query), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, l.wrap(user, err)
	}
	return true, nil
}

func (l *Ledger) closeOpen(ctx context.Context, tx *sql.Tx, user domain.UserID, now int64) error {
	_, err := tx.ExecContext(ctx, l.db.q(
		`UPDATE callings SET calling_to = ? WHERE user_id = ? AND calling_to IS NULL`), now, string(user))
	return err
}

func (l *Ledger) insert(ctx context.Context, tx *sql.Tx, room domain.RoomID, user domain.UserID, now int64) error {
	_, err := tx.ExecContext(ctx, l.db.q(
		`INSERT INTO callings (room_id, user_id, calling_from) VALUES (?, ?, ?)`), string(room), string(user), now)
	return err
}

// wrap tags err with the ledger error kind callers branch on.
func (l *Ledger) wrap(user domain.UserID, err error) error {
	if err == nil {
		return nil
	}
	kind := core.LedgerOther
	switch {
	case errors.Is(err, errRetriesExhausted):
		kind = core.LedgerConflict
	default:
		switch l.db.dialect.classify(err) {
		case classForeignKey:
			kind = core.LedgerUnknownUser
		case classUnique, classRetry:
			kind = core.LedgerConflict
		}
	}
	return &core.LedgerError{Kind: kind, User: user, Err: err}
}

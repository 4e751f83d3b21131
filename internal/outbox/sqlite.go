package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists entries in a local SQLite file so they survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, path[1:])
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// one writer keeps sqlite from reporting SQLITE_BUSY under parallel delivery
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const schema = `
		CREATE TABLE IF NOT EXISTS outbox (
			id          TEXT PRIMARY KEY,
			op          TEXT NOT NULL,
			endpoint    TEXT NOT NULL,
			payload     BLOB NOT NULL,
			created_at  INTEGER NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_age_ns  INTEGER NOT NULL,
			last_error  TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS outbox_created_idx ON outbox (created_at);`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Enqueue(ctx context.Context, e Entry) error {
	const q = `INSERT INTO outbox (id, op, endpoint, payload, created_at, retry_count, max_age_ns, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, e.ID, string(e.Op), e.Endpoint, []byte(e.Payload),
		e.CreatedAt.UnixNano(), e.RetryCount, int64(e.MaxAge), e.LastError)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListPending(ctx context.Context) ([]Entry, error) {
	const q = `SELECT id, op, endpoint, payload, created_at, retry_count, max_age_ns, last_error
		FROM outbox ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			op       string
			payload  []byte
			created  int64
			maxAgeNs int64
		)
		if err := rows.Scan(&e.ID, &op, &e.Endpoint, &payload, &created, &e.RetryCount, &maxAgeNs, &e.LastError); err != nil {
			return nil, err
		}
		e.Op = Op(op)
		e.Payload = payload
		e.CreatedAt = time.Unix(0, created).UTC()
		e.MaxAge = time.Duration(maxAgeNs)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Ack(ctx context.Context, id string) error {
	return s.delete(ctx, id)
}

func (s *SQLiteStore) Drop(ctx context.Context, id string) error {
	return s.delete(ctx, id)
}

func (s *SQLiteStore) delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (s *SQLiteStore) Nack(ctx context.Context, id, reason string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = ? WHERE id = ?`, reason, id); err != nil {
		return 0, err
	}
	var n int
	err = tx.QueryRowContext(ctx, `SELECT retry_count FROM outbox WHERE id = ?`, id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrEntryNotFound
	}
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

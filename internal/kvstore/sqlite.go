package kvstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteDB is a shared database holding any number of namespaced documents.
type SQLiteDB struct {
	db   *sql.DB
	path string
	// mu serializes write transactions from this process; other processes
	// are handled by busy_timeout and retryOnBusy.
	mu sync.Mutex
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, persistErr("create directory", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, persistErr("open sqlite db", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, persistErr("apply pragma", path, fmt.Errorf("%q: %w", pragma, execErr))
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, persistErr("create schema", path, err)
	}
	return &SQLiteDB{db: db, path: path}, nil
}

// Close closes the underlying connection.
func (d *SQLiteDB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Namespace returns a Store for one document in the database.
func (d *SQLiteDB) Namespace(name string) *SQLiteStore {
	return &SQLiteStore{db: d.db, mu: &d.mu, location: d.path + "#" + name, namespace: name}
}

// SQLiteStore is one namespaced document inside a SQLiteDB.
type SQLiteStore struct {
	db        *sql.DB
	mu        *sync.Mutex
	location  string
	namespace string
}

func (s *SQLiteStore) Location() string { return s.location }

func (s *SQLiteStore) Load(ctx context.Context) (Document, error) {
	var doc Document
	err := retryOnBusy(ctx, func() error {
		var err error
		doc, err = s.load(ctx, s.db)
		return err
	})
	if err != nil {
		return nil, persistErr("load", s.location, err)
	}
	return doc, nil
}

func (s *SQLiteStore) Save(ctx context.Context, doc Document) error {
	return s.inTx(ctx, "save", func(tx *sql.Tx) error {
		return s.replace(ctx, tx, doc)
	})
}

func (s *SQLiteStore) Update(ctx context.Context, fn func(Document) error) error {
	var fnErr error
	err := s.inTx(ctx, "update", func(tx *sql.Tx) error {
		doc, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		if fnErr = fn(doc); fnErr != nil {
			return fnErr
		}
		return s.replace(ctx, tx, doc)
	})
	if fnErr != nil {
		return fnErr
	}
	return err
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) load(ctx context.Context, q queryer) (Document, error) {
	rows, err := q.QueryContext(ctx, "SELECT key, value FROM kv WHERE namespace = ?", s.namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	doc := Document{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		doc[key] = []byte(value)
	}
	return doc, rows.Err()
}

func (s *SQLiteStore) replace(ctx context.Context, tx *sql.Tx, doc Document) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM kv WHERE namespace = ?", s.namespace); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for key, value := range doc {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)",
			s.namespace, key, string(value), now,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return persistErr(op, s.location, err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

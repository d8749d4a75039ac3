// Package local provides the single-device repository backend. Every
// collection is one JSON blob in a SQLite key-value table, rewritten whole on
// each change.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/repository"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// KeyPrefix namespaces every blob of the application
const KeyPrefix = "double_checkin_"

const (
	keyUser     = "user"
	keyUsers    = "users"
	keyPartner  = "partner"
	keyCheckIns = "checkins"
	keyRatings  = "ratings"
	keyMessages = "messages"
)

// Store persists application state in a local SQLite file
type Store struct {
	mu     sync.Mutex
	sqlDB  *sql.DB
	now    func() time.Time
	newID  func() string
	events *repository.Broadcaster
}

// Option customizes a Store
type Option func(*Store)

// WithNow overrides the timestamp source
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the id source
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// Open opens or creates the local store at path
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperr.Fatal("open local store", err)
	}
	// one writer keeps read-modify-write of blobs serial at the file level too
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, apperr.Fatal("ping local store", err)
	}
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		_ = sqlDB.Close()
		return nil, apperr.Fatal("create local schema", err)
	}

	s := &Store{
		sqlDB:  sqlDB,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
		events: repository.NewBroadcaster(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the SQLite handle
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// load decodes blob name into dst. A missing blob leaves dst untouched.
func (s *Store) load(ctx context.Context, name string, dst any) error {
	var raw []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, KeyPrefix+name).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return s.storageError("read "+name, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Fatal("decode "+name, err)
	}
	return nil
}

// save replaces blob name with the JSON encoding of v
func (s *Store) save(ctx context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		KeyPrefix+name, raw, s.now().UnixMilli(),
	)
	if err != nil {
		return s.storageError("write "+name, err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, name string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, KeyPrefix+name); err != nil {
		return s.storageError("delete "+name, err)
	}
	return nil
}

func (s *Store) storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isStorageFull(err) {
		return apperr.Fatal(op+": local storage is full", err)
	}
	return apperr.Fatal(op, err)
}

func isStorageFull(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3lib.SQLITE_FULL
	}
	return false
}

var _ repository.Store = (*Store)(nil)
var _ repository.SessionStore = (*Store)(nil)

package cache

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/giniscope/pkg/logger"
	"github.com/okian/giniscope/pkg/metrics"
)

// SQLite is a Store backed by a local SQLite file, for deployments
// that want cached payloads to survive process restarts. Any backing
// error degrades to cache-miss behavior: the pipeline keeps working
// against the upstream API when the file is broken.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
	log logger.Logger
}

// NewSQLite opens (or creates) the cache database at path.
func NewSQLite(path string, opts ...SQLiteOption) (*SQLite, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{
		db:  db,
		ttl: defaultTTL,
		now: time.Now,
		log: logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key       TEXT PRIMARY KEY,
			payload   BLOB NOT NULL,
			stored_at INTEGER NOT NULL
		)
	`)
	return err
}

// Get returns the payload for key if present and fresh. Expired rows
// are deleted on access.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool) {
	var payload []byte
	var storedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, stored_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&payload, &storedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			s.log.Warn(ctx, "cache read failed, treating as miss", logger.Error(err))
		}
		metrics.RecordCacheMiss()
		return nil, false
	}
	if s.now().Sub(time.Unix(storedAt, 0)) > s.ttl {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		metrics.RecordCacheMiss()
		return nil, false
	}
	metrics.RecordCacheHit()
	return payload, true
}

// Put stores payload under key, replacing any prior row.
func (s *SQLite) Put(ctx context.Context, key string, payload []byte) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, payload, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			stored_at = excluded.stored_at
	`, key, payload, s.now().Unix())
	if err != nil {
		s.log.Warn(ctx, "cache write failed, entry dropped", logger.Error(err))
	}
}

// Invalidate drops the row for key.
func (s *SQLite) Invalidate(ctx context.Context, key string) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		s.log.Warn(ctx, "cache invalidate failed", logger.Error(err))
	}
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ Store = (*SQLite)(nil)

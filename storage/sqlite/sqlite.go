package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/hupe1980/nearlsh/codec"
	"github.com/hupe1980/nearlsh/model"
	"github.com/hupe1980/nearlsh/storage"
	"github.com/hupe1980/nearlsh/vector"
)

var _ storage.Storage = (*Store)(nil)
var _ storage.BucketSizer = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	hash_name TEXT NOT NULL,
	bucket_key TEXT NOT NULL,
	payload TEXT NOT NULL,
	vector BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_bucket ON entries(hash_name, bucket_key, id);
CREATE INDEX IF NOT EXISTS idx_entries_payload ON entries(hash_name, payload);

CREATE TABLE IF NOT EXISTS hash_configs (
	hash_name TEXT PRIMARY KEY,
	config BLOB NOT NULL
);
`

// Options configures a Store.
type Options struct {
	// Codec encodes vectors. Defaults to codec.Default.
	Codec codec.Codec
	// BusyTimeoutMillis is how long a connection waits on a locked
	// database. Defaults to 5000.
	BusyTimeoutMillis int
}

// Option configures a Store.
type Option func(*Options)

// WithCodec sets the vector codec.
func WithCodec(c codec.Codec) Option {
	return func(o *Options) { o.Codec = c }
}

// WithBusyTimeout sets the lock wait in milliseconds.
func WithBusyTimeout(ms int) Option {
	return func(o *Options) { o.BusyTimeoutMillis = ms }
}

// Store is a storage.Storage backed by SQLite.
type Store struct {
	db     *sql.DB
	codec  codec.Codec
	closed atomic.Bool
}

// Open opens or creates the database at path. Use ":memory:" for a
// private in-memory database.
func Open(ctx context.Context, path string, optFns ...Option) (*Store, error) {
	opts := Options{Codec: codec.Default, BusyTimeoutMillis: 5000}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path, opts.BusyTimeoutMillis)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY and
	// keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	return &Store{db: db, codec: opts.Codec}, nil
}

func (s *Store) check(ctx context.Context) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	return ctx.Err()
}

func (s *Store) encode(v vector.Vector) ([]byte, error) {
	data, err := s.codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode vector: %w", err)
	}
	return data, nil
}

const insertEntry = `INSERT INTO entries (hash_name, bucket_key, payload, vector) VALUES (?, ?, ?, ?)`

// Store implements storage.Storage.
func (s *Store) Store(ctx context.Context, hashName, bucketKey string, e model.Entry) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	blob, err := s.encode(e.Vector)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, insertEntry, hashName, bucketKey, e.Payload, blob); err != nil {
		return fmt.Errorf("sqlite: store: %w", err)
	}
	return nil
}

// StoreMany implements storage.Storage. All entries are written in one
// transaction.
func (s *Store) StoreMany(ctx context.Context, hashName string, bucketKeys []string, entries []model.Entry) error {
	if len(bucketKeys) != len(entries) {
		return storage.ErrLengthMismatch
	}
	if err := s.check(ctx); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertEntry)
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, e := range entries {
		blob, err := s.encode(e.Vector)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, hashName, bucketKeys[i], e.Payload, blob); err != nil {
			return fmt.Errorf("sqlite: store many: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Bucket implements storage.Storage.
func (s *Store) Bucket(ctx context.Context, hashName, bucketKey string) ([]model.Entry, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload, vector FROM entries WHERE hash_name = ? AND bucket_key = ? ORDER BY id`,
		hashName, bucketKey)
	if err != nil {
		return nil, fmt.Errorf("sqlite: bucket: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Entry
	for rows.Next() {
		var (
			e    model.Entry
			blob []byte
		)
		if err := rows.Scan(&e.Payload, &blob); err != nil {
			return nil, fmt.Errorf("sqlite: scan entry: %w", err)
		}
		if err := s.codec.Unmarshal(blob, &e.Vector); err != nil {
			return nil, fmt.Errorf("sqlite: decode vector of %q: %w", e.Payload, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// BucketSize implements storage.BucketSizer.
func (s *Store) BucketSize(ctx context.Context, hashName, bucketKey string) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE hash_name = ? AND bucket_key = ?`,
		hashName, bucketKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: bucket size: %w", err)
	}
	return n, nil
}

// BucketKeys implements storage.Storage.
func (s *Store) BucketKeys(ctx context.Context, hashName string) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT bucket_key FROM entries WHERE hash_name = ? ORDER BY bucket_key`, hashName)
	if err != nil {
		return nil, fmt.Errorf("sqlite: bucket keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("sqlite: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Delete implements storage.Storage.
func (s *Store) Delete(ctx context.Context, hashName string, bucketKeys []string, payload string) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	if len(bucketKeys) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`DELETE FROM entries WHERE hash_name = ? AND bucket_key = ? AND payload = ?`)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	removed := 0
	for _, key := range bucketKeys {
		res, err := stmt.ExecContext(ctx, hashName, key, payload)
		if err != nil {
			return 0, fmt.Errorf("sqlite: delete: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("sqlite: delete: %w", err)
		}
		removed += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return removed, nil
}

// Clear implements storage.Storage.
func (s *Store) Clear(ctx context.Context, hashName string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE hash_name = ?`, hashName); err != nil {
		return fmt.Errorf("sqlite: clear %s: %w", hashName, err)
	}
	return nil
}

// ClearAll implements storage.Storage.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("sqlite: clear all: %w", err)
	}
	return nil
}

// SaveHashConfig implements storage.Storage.
func (s *Store) SaveHashConfig(ctx context.Context, hashName string, blob []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hash_configs (hash_name, config) VALUES (?, ?)
		 ON CONFLICT(hash_name) DO UPDATE SET config = excluded.config`,
		hashName, blob)
	if err != nil {
		return fmt.Errorf("sqlite: save hash config %s: %w", hashName, err)
	}
	return nil
}

// LoadHashConfig implements storage.Storage.
func (s *Store) LoadHashConfig(ctx context.Context, hashName string) ([]byte, bool, error) {
	if err := s.check(ctx); err != nil {
		return nil, false, err
	}
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT config FROM hash_configs WHERE hash_name = ?`, hashName).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: load hash config %s: %w", hashName, err)
	}
	return blob, true, nil
}

// Close implements storage.Storage. Closing twice is a no-op.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

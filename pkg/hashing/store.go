package hashing

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists file digests in SQLite keyed by (path, mtime, size). A row
// matching all three means the file has not changed since it was hashed, so
// the stored digest is still its content digest. The store survives process
// restarts; it is an optimization only and can be deleted at any time.
type Store struct {
	db   *sql.DB
	path string
}

// StoreConfig holds SQLite store configuration.
type StoreConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewStore creates a store instance. Call Init before use.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &Store{path: cfg.Path}, nil
}

// Init opens the database, enables WAL mode, and runs migrations.
func (s *Store) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db

	if err := s.migrate(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Get returns the stored digest for (path, mtime, size), if present.
func (s *Store) Get(ctx context.Context, path string, mtime int64, size int64) (Digest, bool, error) {
	query := `
		SELECT digest FROM file_hashes
		WHERE path = ? AND mtime_ns = ? AND size = ?
	`

	var hexDigest string
	err := s.db.QueryRowContext(ctx, query, path, mtime, size).Scan(&hexDigest)
	if errors.Is(err, sql.ErrNoRows) {
		return Digest{}, false, nil
	}
	if err != nil {
		return Digest{}, false, fmt.Errorf("failed to get digest for %s: %w", path, err)
	}

	d, err := ParseDigest(hexDigest)
	if err != nil {
		return Digest{}, false, fmt.Errorf("corrupt digest row for %s: %w", path, err)
	}
	return d, true, nil
}

// Put stores the digest for (path, mtime, size), replacing any stale row for
// the same path.
func (s *Store) Put(ctx context.Context, path string, mtime int64, size int64, d Digest) error {
	query := `
		INSERT INTO file_hashes (path, mtime_ns, size, digest, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			mtime_ns = excluded.mtime_ns,
			size = excluded.size,
			digest = excluded.digest,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, path, mtime, size, d.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store digest for %s: %w", path, err)
	}
	return nil
}

// StoreHasher combines a Store with an underlying hasher: a stat plus a
// store lookup replaces re-reading unchanged files across builds.
type StoreHasher struct {
	root  string
	inner FileHasher
	store *Store
}

// NewStoreHasher wraps inner with the persistent store. root is the project
// root project-relative paths resolve against.
func NewStoreHasher(root string, inner FileHasher, store *Store) *StoreHasher {
	return &StoreHasher{root: root, inner: inner, store: store}
}

// Hash implements FileHasher.
func (h *StoreHasher) Hash(path string) (Digest, error) {
	info, err := os.Stat(filepath.Join(h.root, filepath.FromSlash(path)))
	if err != nil {
		return Digest{}, fmt.Errorf("hash %s: %w", path, err)
	}
	mtime := info.ModTime().UnixNano()
	size := info.Size()

	ctx := context.Background()
	if d, ok, err := h.store.Get(ctx, path, mtime, size); err == nil && ok {
		return d, nil
	}

	d, err := h.inner.Hash(path)
	if err != nil {
		return Digest{}, err
	}
	if err := h.store.Put(ctx, path, mtime, size, d); err != nil {
		return Digest{}, err
	}
	return d, nil
}

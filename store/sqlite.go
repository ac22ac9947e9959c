package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"medisocial/logger"
)

// DefaultDirPermissions is used when creating the database directory.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore keeps the slot as one row of a key/value table.
type SQLiteStore struct {
	db  *sql.DB
	key string
	log *logger.Logger
}

// NewSQLiteStore opens the database, creating its directory and running the
// migrations.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	cfg := resolve(opts)
	dsn := cfg.SQLiteDSN
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}
	log := cfg.Logger.With("backend", "sqlite", "dsn", dsn)

	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Debug("sqlite draft store ready")
	return &SQLiteStore{db: db, key: cfg.Key, log: log}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load %s: %w", s.key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", s.key, err)
	}
	s.log.Debug("draft saved", "bytes", len(data))
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Package store provides durable backends for the single post draft slot.
package store

import (
	"context"
	"strings"
	"sync"

	"medisocial/logger"
)

// DefaultKey is the slot key the draft is stored under.
const DefaultKey = "medisocial_last_post"

// Slot is one string-keyed value. Load reports false when nothing is stored.
type Slot interface {
	Load(ctx context.Context) ([]byte, bool, error)
	Save(ctx context.Context, data []byte) error
	Close() error
}

// Opts holds configuration for opening a slot.
type Opts struct {
	SQLiteDSN string
	FilePath  string
	Key       string
	Logger    *logger.Logger
}

// Option configures Open.
type Option func(*Opts)

func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.SQLiteDSN = dsn }
}

func WithFilePath(path string) Option {
	return func(o *Opts) { o.FilePath = path }
}

// WithDSN picks the backend from a single setting: a path ending in .json is
// a file, "memory" or empty is in-process, anything else is SQLite.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		switch {
		case dsn == "" || dsn == "memory":
		case strings.HasSuffix(strings.ToLower(dsn), ".json"):
			o.FilePath = dsn
		default:
			o.SQLiteDSN = dsn
		}
	}
}

func WithKey(key string) Option {
	return func(o *Opts) { o.Key = key }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *Opts) { o.Logger = l }
}

func resolve(opts []Option) Opts {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return cfg
}

// Open returns the backend selected by opts. The file backend wins over SQLite
// when both are set; with neither the slot lives in memory.
func Open(opts ...Option) (Slot, error) {
	cfg := resolve(opts)
	switch {
	case cfg.FilePath != "":
		return NewFileStore(opts...)
	case cfg.SQLiteDSN != "":
		return NewSQLiteStore(opts...)
	default:
		cfg.Logger.Info("draft slot kept in memory; it will not survive a restart")
		return NewMemoryStore(), nil
	}
}

// MemoryStore keeps the slot in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
	ok   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ok {
		return nil, false, nil
	}
	return append([]byte(nil), s.data...), true, nil
}

func (s *MemoryStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	s.ok = true
	return nil
}

func (s *MemoryStore) Close() error { return nil }

package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/nicktill/ipedscomps/pkg/storage"
)

// Storage implements storage.Storage using BadgerDB (LSM tree)
type Storage struct {
	db *badger.DB
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM (default for the result cache)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = 16 MB memtable)
	MaxMemoryMB int64

	// Logger receives BadgerDB's internal logs. Nil silences them.
	Logger *zap.SugaredLogger
}

// New creates a BadgerDB storage backend. An on-disk database is emptied on
// open: cached payloads never outlive the process that produced them.
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3 // ~33% for memtable
	}

	opts = opts.
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithValueLogFileSize(64 << 20)

	if cfg.Logger != nil {
		opts = opts.WithLogger(zapLogger{cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	if !cfg.InMemory {
		if err := db.DropAll(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to reset badger: %w", err)
		}
	}

	return &Storage{db: db}, nil
}

// Get returns the payload stored under key
func (s *Storage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(key))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if errors.Is(err, badger.ErrDBClosed) {
		return nil, false, storage.ErrClosed
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read payload: %w", err)
	}
	return payload, true, nil
}

// Put stores payload under key
func (s *Storage) Put(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(key), payload)
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return storage.ErrClosed
	}
	if err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}

// Delete removes key
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(makeKey(key))
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return storage.ErrClosed
	}
	if err != nil {
		return fmt.Errorf("failed to delete payload: %w", err)
	}
	return nil
}

// Close shuts down BadgerDB cleanly
func (s *Storage) Close() error {
	return s.db.Close()
}

// RunGC runs one round of value log garbage collection. It returns
// badger.ErrNoRewrite when nothing was reclaimed and
// badger.ErrGCInMemoryMode for in-memory databases.
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Stats counts stored payloads and their sizes
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	stats := &storage.Stats{Backend: "badger"}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if stats.Entries%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			stats.Entries++
			stats.SizeBytes += uint64(it.Item().ValueSize())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	return stats, nil
}

// makeKey prefixes the logical key with its hash so keys have a fixed-width,
// well-distributed head.
// Format: [xxhash (8 bytes)][key]
func makeKey(key string) []byte {
	out := make([]byte, 8+len(key))
	binary.BigEndian.PutUint64(out[0:8], xxhash.Sum64String(key))
	copy(out[8:], key)
	return out
}

// zapLogger adapts a zap logger to badger.Logger
type zapLogger struct {
	l *zap.SugaredLogger
}

func (z zapLogger) Errorf(format string, args ...interface{})   { z.l.Errorf(format, args...) }
func (z zapLogger) Warningf(format string, args ...interface{}) { z.l.Warnf(format, args...) }
func (z zapLogger) Infof(format string, args ...interface{})    { z.l.Infof(format, args...) }
func (z zapLogger) Debugf(format string, args ...interface{})   { z.l.Debugf(format, args...) }

package memory

import (
	"context"
	"sync"

	"github.com/nicktill/ipedscomps/pkg/storage"
)

// Storage stores payloads in memory. Data is lost on restart.
type Storage struct {
	payloads map[string][]byte
	size     uint64
	closed   bool
	mu       sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		payloads: make(map[string][]byte),
	}
}

// Get returns the payload stored under key
func (s *Storage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, storage.ErrClosed
	}
	payload, ok := s.payloads[key]
	return payload, ok, nil
}

// Put stores a copy of payload under key
func (s *Storage) Put(ctx context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	if old, ok := s.payloads[key]; ok {
		s.size -= uint64(len(old))
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	s.payloads[key] = buf
	s.size += uint64(len(buf))
	return nil
}

// Delete removes key
func (s *Storage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	if old, ok := s.payloads[key]; ok {
		s.size -= uint64(len(old))
		delete(s.payloads, key)
	}
	return nil
}

// Close drops all payloads
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.payloads = nil
	s.size = 0
	return nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &storage.Stats{
		Entries:   uint64(len(s.payloads)),
		SizeBytes: s.size,
		Backend:   "memory",
	}, nil
}

/*
Package storage provides the pluggable payload store behind the result cache.

# Storage Interface

The result cache keeps encoded JSON responses keyed by query. Where those bytes
live is abstracted behind the Storage interface:
  - memory: a map guarded by a RWMutex (default)
  - badger: BadgerDB opened in in-memory mode

	type Storage interface {
	    Get(ctx context.Context, key string) ([]byte, bool, error)
	    Put(ctx context.Context, key string, payload []byte) error
	    Delete(ctx context.Context, key string) error
	    Stats(ctx context.Context) (*Stats, error)
	    Close() error
	}

Backends do not bound their size and do not evict. Eviction order is owned by
pkg/cache, which deletes the oldest key when it inserts past its limit.

# Lifetime

Neither backend carries payloads across restarts. The badger backend runs in
memory by default; when given a directory it drops existing data on open so
the cache always starts empty.

# Usage Example

	store, err := badger.New(badger.Config{InMemory: true})
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	_ = store.Put(ctx, "51.2001|7|flat", payload)
	data, ok, err := store.Get(ctx, "51.2001|7|flat")
*/
package storage

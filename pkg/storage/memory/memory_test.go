package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/nicktill/ipedscomps/pkg/storage"
)

func TestMemoryStorage_PutAndGet(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()

	if err := store.Put(ctx, "51.2001|7|flat", []byte(`{"cip":"51.2001"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	payload, ok, err := store.Get(ctx, "51.2001|7|flat")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected key to be present")
	}
	if string(payload) != `{"cip":"51.2001"}` {
		t.Errorf("Unexpected payload %s", payload)
	}

	_, ok, err = store.Get(ctx, "11.0701|none|flat")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Expected missing key to be absent")
	}
}

func TestMemoryStorage_PutCopiesPayload(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	buf := []byte("abc")
	store.Put(ctx, "k", buf)
	buf[0] = 'z'

	payload, _, _ := store.Get(ctx, "k")
	if string(payload) != "abc" {
		t.Errorf("Stored payload changed with caller buffer: %s", payload)
	}
}

func TestMemoryStorage_DeleteAndStats(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	store.Put(ctx, "a", []byte("1234"))
	store.Put(ctx, "b", []byte("56"))
	store.Put(ctx, "b", []byte("789"))

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 2 || stats.SizeBytes != 7 {
		t.Errorf("Expected 2 entries / 7 bytes, got %d / %d", stats.Entries, stats.SizeBytes)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete of missing key failed: %v", err)
	}

	stats, _ = store.Stats(ctx)
	if stats.Entries != 1 || stats.SizeBytes != 3 {
		t.Errorf("Expected 1 entry / 3 bytes, got %d / %d", stats.Entries, stats.SizeBytes)
	}
	if stats.Backend != "memory" {
		t.Errorf("Expected backend memory, got %s", stats.Backend)
	}
}

func TestMemoryStorage_Closed(t *testing.T) {
	store := New()
	store.Close()

	if _, _, err := store.Get(context.Background(), "k"); err != storage.ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := store.Put(context.Background(), "k", nil); err != storage.ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestMemoryStorage_ConcurrentPuts(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			store.Put(ctx, string(rune('a'+id)), []byte{byte(id)})
		}(i)
	}
	wg.Wait()

	stats, _ := store.Stats(ctx)
	if stats.Entries != 10 {
		t.Errorf("Expected 10 entries from concurrent puts, got %d", stats.Entries)
	}
}

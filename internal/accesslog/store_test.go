package accesslog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "requests.db"))

	assert.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	assert.NoError(t, store.Record(ctx, Entry{Method: "GET", Path: "/", Status: 200, Duration: 3 * time.Millisecond, RemoteAddr: "10.0.0.1:1234", UserAgent: "curl/8.0", RequestedAt: now.Add(-time.Minute)}))
	assert.NoError(t, store.Record(ctx, Entry{Method: "GET", Path: "/missing", Status: 404, RequestedAt: now}))

	entries, err := store.Recent(ctx, 10)

	assert.NoError(t, err)
	assert.Len(t, entries, 2)

	assert.Equal(t, "/missing", entries[0].Path)
	assert.Equal(t, 404, entries[0].Status)
	assert.True(t, now.Equal(entries[0].RequestedAt))

	assert.Equal(t, "/", entries[1].Path)
	assert.Equal(t, 3*time.Millisecond, entries[1].Duration)
	assert.Equal(t, "curl/8.0", entries[1].UserAgent)
	assert.Equal(t, "10.0.0.1:1234", entries[1].RemoteAddr)
}

func TestRecentLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.NoError(t, store.Record(ctx, Entry{Method: "GET", Path: "/", Status: 200}))
	}

	entries, err := store.Recent(ctx, 3)

	assert.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Greater(t, entries[0].ID, entries[1].ID)
}

func TestPrune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	assert.NoError(t, store.Record(ctx, Entry{Method: "GET", Path: "/old", Status: 200, RequestedAt: now.AddDate(0, 0, -10)}))
	assert.NoError(t, store.Record(ctx, Entry{Method: "GET", Path: "/new", Status: 200, RequestedAt: now}))

	deleted, err := store.Prune(ctx, now.AddDate(0, 0, -7))

	assert.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	entries, err := store.Recent(ctx, 10)

	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "/new", entries[0].Path)
}

func TestPrunerRetention(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	assert.NoError(t, store.Record(ctx, Entry{Method: "GET", Path: "/old", Status: 200, RequestedAt: time.Now().AddDate(0, 0, -3)}))

	disabled, err := NewPruner(store, 0)
	assert.NoError(t, err)

	deleted, err := disabled.PruneNow(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	pruner, err := NewPruner(store, 1)
	assert.NoError(t, err)

	deleted, err = pruner.PruneNow(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestPrunerRunStopsWithContext(t *testing.T) {
	store := openTestStore(t)

	pruner, err := NewPruner(store, 7)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- pruner.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pruner did not stop")
	}
}

package querycache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func exerciseBackend(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := backend.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	created := time.Date(2025, 6, 1, 12, 30, 0, 123, time.UTC)
	require.NoError(t, backend.Set(ctx, "k", Record{Value: []byte(`{"a":1}`), Created: created}, time.Hour))

	rec, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(rec.Value))
	assert.True(t, created.Equal(rec.Created), "created %s, got %s", created, rec.Created)

	later := created.Add(time.Minute)
	require.NoError(t, backend.Set(ctx, "k", Record{Value: []byte("2"), Created: later}, time.Hour))
	rec, ok, err = backend.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", string(rec.Value))
	assert.True(t, later.Equal(rec.Created))
}

func TestMemoryBackend(t *testing.T) {
	t.Parallel()
	exerciseBackend(t, NewMemory())
}

func TestSQLiteBackend(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "query.db")
	backend, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	exerciseBackend(t, backend)
}

func TestSQLiteBackendPersistsAcrossOpens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "query.db")

	first, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "k", Record{Value: []byte("v"), Created: time.Now()}, 0))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	rec, ok, err := second.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(rec.Value))
}

func TestRedisBackend(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	backend, err := OpenRedis(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	exerciseBackend(t, backend)
}

func TestRedisBackendNativeExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr := miniredis.RunT(t)
	backend, err := OpenRedis(ctx, mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	require.NoError(t, backend.Set(ctx, "k", Record{Value: []byte("v"), Created: time.Now()}, time.Hour))
	assert.True(t, mr.Exists("k"))
	mr.FastForward(time.Hour + time.Second)
	_, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisBackendDropsCorruptRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("k", "garbage"))
	backend, err := OpenRedis(ctx, mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	_, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("k"))
}

func TestOpenRedisUnreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := OpenRedis(context.Background(), addr)
	require.Error(t, err)
}

func TestOpenBackends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr := miniredis.RunT(t)

	for _, cfg := range []Config{
		{Backend: "memory"},
		{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "q.db")},
		{Backend: "Redis", RedisAddr: mr.Addr()},
	} {
		cache, err := Open(ctx, cfg, zap.NewNop())
		require.NoError(t, err, cfg.Backend)
		got, err := cache.Memoize(ctx, "k-"+cfg.Backend, time.Hour, func(context.Context) ([]byte, error) {
			return []byte("v"), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "v", string(got))
		require.NoError(t, cache.Close())
	}
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, variant Variant) *Service {
	t.Helper()
	local := NewLocalCache(100, 0, zap.NewNop())
	remote := newTestRemote(t)
	cfg := Config{
		DefaultTTL: time.Minute,
		Lock: LockPolicy{
			LockTimeout:     time.Second,
			LockWaitTimeout: 50 * time.Millisecond,
			LockRetryDelay:  5 * time.Millisecond,
		},
	}
	return NewService(variant, local, remote, cfg, "owner-1", zap.NewNop())
}

func TestService_EventualGetOrLoad_CachesOnMiss(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := newTestService(t, VariantHybrid)
	loads := 0
	load := func(ctx context.Context) ([]byte, error) {
		loads++
		return []byte("fresh"), nil
	}

	// Act
	v1, err := svc.GetOrLoad(ctx, "orders:1", Eventual, 0, load)
	require.NoError(t, err)
	v2, err := svc.GetOrLoad(ctx, "orders:1", Eventual, 0, load)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, []byte("fresh"), v1)
	assert.Equal(t, []byte("fresh"), v2)
	assert.Equal(t, 1, loads, "second call should be served from cache")
}

func TestService_StrongMode_BypassesCacheWhileLocked(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := newTestService(t, VariantHybrid)
	require.NoError(t, svc.Set(ctx, "orders:1", []byte("stale"), time.Minute, Eventual))

	writeStarted := make(chan struct{})
	releaseWrite := make(chan struct{})
	go func() {
		_ = svc.WithLock(ctx, "orders:1", func(ctx context.Context) error {
			close(writeStarted)
			<-releaseWrite
			return nil
		}, []string{"orders:1"})
	}()
	<-writeStarted

	loads := 0
	load := func(ctx context.Context) ([]byte, error) {
		loads++
		return []byte("authoritative"), nil
	}

	// Act: a Strong-mode reader must bypass the cache while the lock holds.
	v, err := svc.GetOrLoad(ctx, "orders:1", Strong, 0, load)
	close(releaseWrite)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []byte("authoritative"), v)
	assert.Equal(t, 1, loads)
}

func TestService_SerializableMode_WaitsForLockRelease(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := newTestService(t, VariantHybrid)
	require.NoError(t, svc.Set(ctx, "orders:1", []byte("stale"), time.Minute, Eventual))

	go func() {
		_ = svc.WithLock(ctx, "orders:1", func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			return nil
		}, []string{"orders:1"})
	}()
	time.Sleep(2 * time.Millisecond)

	load := func(ctx context.Context) ([]byte, error) {
		return []byte("authoritative"), nil
	}

	// Act: Serializable waits for the writer's lock to clear, then re-reads
	// from cache (invalidated by WithLock on success).
	v, err := svc.GetOrLoad(ctx, "orders:1", Serializable, 0, load)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []byte("authoritative"), v)
}

func TestService_EventualGetOrLoad_AppliesSuppliedTTLOnMiss(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := newTestService(t, VariantLocalOnly)
	load := func(ctx context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	}

	// Act: a TTL shorter than the cache's DefaultTTL must still take effect.
	_, err := svc.GetOrLoad(ctx, "orders:1", Eventual, time.Millisecond, load)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// Assert: the entry has already expired rather than surviving for DefaultTTL.
	_, ok, _ := svc.Get(ctx, "orders:1")
	assert.False(t, ok, "entry should have expired under the query's own TTL, not DefaultTTL")
}

func TestService_NullVariantNeverCaches(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := NewService(VariantNull, nil, nil, Config{}, "owner-1", zap.NewNop())
	loads := 0
	load := func(ctx context.Context) ([]byte, error) {
		loads++
		return []byte("v"), nil
	}

	// Act
	_, err := svc.GetOrLoad(ctx, "k", Eventual, 0, load)
	require.NoError(t, err)
	_, err = svc.GetOrLoad(ctx, "k", Eventual, 0, load)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 2, loads)
}

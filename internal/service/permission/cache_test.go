package permission

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"akwa/internal/service/inventory/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger 可配置的账本权限查询桩
type fakeLedger struct {
	granted bool
	err     error
	delay   time.Duration
	calls   atomic.Int64
}

func (f *fakeLedger) QueryPermission(ctx context.Context, actor, capability string) (bool, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return f.granted, f.err
}

const testActor = "0xabc"

func TestCacheMissQueriesLedgerOnce(t *testing.T) {
	ledger := &fakeLedger{granted: true}
	cache := NewCache(NewMemoryStore(), ledger, time.Hour, time.Second)
	ctx := context.Background()

	granted, err := cache.IsPermitted(ctx, testActor, string(CapReserveInventory))
	require.NoError(t, err)
	assert.True(t, granted)

	// 第二次命中缓存，不再回源
	granted, err = cache.IsPermitted(ctx, testActor, string(CapReserveInventory))
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, int64(1), ledger.calls.Load())
}

func TestNegativeResultIsCached(t *testing.T) {
	ledger := &fakeLedger{granted: false}
	cache := NewCache(NewMemoryStore(), ledger, time.Hour, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		granted, err := cache.IsPermitted(ctx, testActor, string(CapReserveInventory))
		require.NoError(t, err)
		assert.False(t, granted)
	}
	assert.Equal(t, int64(1), ledger.calls.Load())
}

func TestUnknownCapabilityIsDenied(t *testing.T) {
	ledger := &fakeLedger{granted: true}
	cache := NewCache(NewMemoryStore(), ledger, time.Hour, time.Second)

	granted, err := cache.IsPermitted(context.Background(), testActor, "launch_rockets")

	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.False(t, granted)
	assert.Equal(t, int64(0), ledger.calls.Load())
}

func TestLedgerFailureFailsClosed(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("connection refused")}
	cache := NewCache(NewMemoryStore(), ledger, time.Hour, time.Second)

	granted, err := cache.IsPermitted(context.Background(), testActor, string(CapReserveInventory))

	require.NoError(t, err)
	assert.False(t, granted)
}

func TestLedgerTimeoutIsReported(t *testing.T) {
	ledger := &fakeLedger{granted: true, delay: time.Second}
	cache := NewCache(NewMemoryStore(), ledger, time.Hour, 10*time.Millisecond)

	granted, err := cache.IsPermitted(context.Background(), testActor, string(CapReserveInventory))

	assert.ErrorIs(t, err, domain.ErrPermissionCheckTimeout)
	assert.False(t, granted)
}

func TestTTLExpiryTriggersRequery(t *testing.T) {
	ledger := &fakeLedger{granted: true}
	cache := NewCache(NewMemoryStore(), ledger, 10*time.Millisecond, time.Second)
	ctx := context.Background()

	_, err := cache.IsPermitted(ctx, testActor, string(CapReserveInventory))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, err = cache.IsPermitted(ctx, testActor, string(CapReserveInventory))
	require.NoError(t, err)
	assert.Equal(t, int64(2), ledger.calls.Load())
}

func TestInvalidateForcesFreshQuery(t *testing.T) {
	ledger := &fakeLedger{granted: true}
	cache := NewCache(NewMemoryStore(), ledger, time.Hour, time.Second)
	ctx := context.Background()

	granted, err := cache.IsPermitted(ctx, testActor, string(CapReserveInventory))
	require.NoError(t, err)
	assert.True(t, granted)

	// 账本侧撤销权限并推送失效事件
	ledger.granted = false
	require.NoError(t, cache.Invalidate(ctx, testActor, string(CapReserveInventory)))

	granted, err = cache.IsPermitted(ctx, testActor, string(CapReserveInventory))
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, int64(2), ledger.calls.Load())
}

func TestValidateCapabilities(t *testing.T) {
	ok := listerFunc(func(context.Context) ([]string, error) {
		return []string{"reserve_inventory", "release_inventory", "manage_inventory", "extra"}, nil
	})
	assert.NoError(t, ValidateCapabilities(context.Background(), ok))

	missing := listerFunc(func(context.Context) ([]string, error) {
		return []string{"reserve_inventory"}, nil
	})
	assert.Error(t, ValidateCapabilities(context.Background(), missing))
}

type listerFunc func(ctx context.Context) ([]string, error)

func (f listerFunc) KnownCapabilities(ctx context.Context) ([]string, error) { return f(ctx) }

package infrastructure

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalItemLockerMutualExclusion(t *testing.T) {
	locker := NewLocalItemLocker()
	ctx := context.Background()

	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "item-a")
			require.NoError(t, err)
			defer unlock()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, max)
}

func TestLocalItemLockerIndependentItems(t *testing.T) {
	locker := NewLocalItemLocker()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "item-a")
	require.NoError(t, err)
	defer unlockA()

	// 另一个库存项不受 item-a 持锁影响
	done := make(chan struct{})
	go func() {
		unlockB, err := locker.Lock(ctx, "item-b")
		assert.NoError(t, err)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on independent item blocked")
	}
}

func TestLocalItemLockerHonorsContext(t *testing.T) {
	locker := NewLocalItemLocker()

	unlock, err := locker.Lock(context.Background(), "item-a")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "item-a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalItemLockerReclaimsEntries(t *testing.T) {
	locker := NewLocalItemLocker()

	unlock, err := locker.Lock(context.Background(), "item-a")
	require.NoError(t, err)
	unlock()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Empty(t, locker.locks)
}

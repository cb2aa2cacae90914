package infrastructure

import (
	"context"
	"sync"
)

// LocalItemLocker 进程内 per-item 互斥锁，单副本部署的默认实现。
// 每个 itemID 一个容量为 1 的信号量，引用计数归零即回收，
// 条目数不会随历史 itemID 无限增长。
type LocalItemLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// NewLocalItemLocker 创建进程内锁
func NewLocalItemLocker() *LocalItemLocker {
	return &LocalItemLocker{locks: make(map[string]*lockEntry)}
}

// Lock 阻塞到拿锁或 ctx 取消
func (l *LocalItemLocker) Lock(ctx context.Context, itemID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[itemID]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.locks[itemID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			l.release(itemID, e)
		}, nil
	case <-ctx.Done():
		l.release(itemID, e)
		return nil, ctx.Err()
	}
}

func (l *LocalItemLocker) release(itemID string, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, itemID)
	}
	l.mu.Unlock()
}

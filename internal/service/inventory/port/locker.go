package port

import "context"

// ItemLocker 串行化单个库存项的数量变更。
// 单副本部署用进程内实现，多副本用 ZooKeeper 实现。
type ItemLocker interface {
	// Lock 阻塞到拿锁或 ctx 取消。拿锁成功返回解锁函数，
	// 调用方必须在事务提交后调用它。
	Lock(ctx context.Context, itemID string) (unlock func(), err error)
}

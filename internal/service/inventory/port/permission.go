package port

import "context"

// PermissionChecker 权限检查端口。写路径在取 per-item 锁之前调用。
type PermissionChecker interface {
	// IsPermitted 判定 actor 是否持有 capability。
	// 超时返回 domain.ErrPermissionCheckTimeout，其余失败一律报告拒绝。
	IsPermitted(ctx context.Context, actor, capability string) (bool, error)
}

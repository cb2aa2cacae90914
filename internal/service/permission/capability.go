package permission

import (
	"context"
	"fmt"
)

// Capability 是一个编译期定义的权限能力名。
// 不允许运行时拼接能力码，启动时会和账本侧声明的能力列表核对。
type Capability string

const (
	CapReserveInventory Capability = "reserve_inventory"
	CapReleaseInventory Capability = "release_inventory"
	CapManageInventory  Capability = "manage_inventory"
)

// AllCapabilities 是本服务会检查的全部能力
var AllCapabilities = []Capability{
	CapReserveInventory,
	CapReleaseInventory,
	CapManageInventory,
}

// Known 报告 name 是否是一个已定义的能力
func Known(name string) bool {
	for _, c := range AllCapabilities {
		if string(c) == name {
			return true
		}
	}
	return false
}

// CapabilityLister 暴露账本侧声明的能力列表
type CapabilityLister interface {
	KnownCapabilities(ctx context.Context) ([]string, error)
}

// ValidateCapabilities 在启动时核对本地枚举与账本的能力列表，
// 本地定义了账本不认识的能力时直接拒绝启动。
func ValidateCapabilities(ctx context.Context, lister CapabilityLister) error {
	remote, err := lister.KnownCapabilities(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch ledger capability list: %w", err)
	}
	known := make(map[string]struct{}, len(remote))
	for _, name := range remote {
		known[name] = struct{}{}
	}
	for _, c := range AllCapabilities {
		if _, ok := known[string(c)]; !ok {
			return fmt.Errorf("capability %q is not declared on the ledger", c)
		}
	}
	return nil
}

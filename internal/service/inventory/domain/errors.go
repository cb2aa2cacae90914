package domain

import "errors"

// 库存核心的哨兵错误。调用方用 errors.Is 区分业务失败，
// 接口层据此映射 HTTP 状态码。
var (
	// ErrInsufficientCapacity 可用数量不足以满足本次预订
	ErrInsufficientCapacity = errors.New("insufficient available quantity")

	// ErrOverRelease 归还数量超过当前已预留数量
	ErrOverRelease = errors.New("release exceeds reserved quantity")

	// ErrInvalidState 预订状态不允许本次流转
	ErrInvalidState = errors.New("invalid reservation state transition")

	// ErrPermissionDenied 操作者没有所需能力，或权限检查失败后默认拒绝
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPermissionCheckTimeout 权限回源账本超时
	ErrPermissionCheckTimeout = errors.New("permission check timed out")

	// ErrLedgerSubmitFailed 单次账本提交失败，可重试
	ErrLedgerSubmitFailed = errors.New("ledger submit failed")

	// ErrLedgerSubmitExhausted 账本提交重试次数用尽
	ErrLedgerSubmitExhausted = errors.New("ledger submit attempts exhausted")

	// ErrItemNotFound 库存项不存在或不属于该租户
	ErrItemNotFound = errors.New("inventory item not found")

	// ErrReservationNotFound 预订不存在
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrItemInactive 库存项已停用，不接受新预订
	ErrItemInactive = errors.New("inventory item is inactive")

	// ErrOpenReservations 存在未终结预订，库存项不能停用
	ErrOpenReservations = errors.New("item has open reservations")
)

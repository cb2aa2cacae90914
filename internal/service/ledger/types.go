// Package ledger 是外部分布式账本网关的客户端。
// 账本被当作一个不透明的外部服务: 三个调用（提交动作、查询权限、
// 订阅权限变更事件）都可能缓慢或失败，核心从不假定同步成功。
package ledger

import "encoding/json"

// SubmitRequest 是一次动作上账请求。EntryID 是幂等键:
// 超时后重提交不会在账本侧重复入账，这是核心对网关的契约要求。
type SubmitRequest struct {
	EntryID   string          `json:"entryId"`
	ProfileID string          `json:"profileId"`
	ItemID    string          `json:"itemId"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
}

// Receipt 是账本返回的交易回执
type Receipt struct {
	TxHash string `json:"txHash"`
}

// TxStatus 是按回执查询到的交易状态
type TxStatus struct {
	Status      string `json:"status"` // success / failed / unknown
	BlockNumber int64  `json:"blockNumber"`
	GasUsed     int64  `json:"gasUsed"`
}

// PermissionEvent 是账本推送的权限变更事件
type PermissionEvent struct {
	Actor      string `json:"actor"`
	Capability string `json:"capability"`
	Granted    bool   `json:"granted"`
}

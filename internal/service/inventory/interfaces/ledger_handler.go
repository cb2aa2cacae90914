package interfaces

import (
	"encoding/json"
	"net/http"

	"akwa/internal/service/ledger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// LedgerHandler 暴露账本侧的只读查询，主要给运维核对
// 某条动作在账本上的落账情况。
type LedgerHandler struct {
	client *ledger.Client
}

// NewLedgerHandler 创建账本查询处理器
func NewLedgerHandler(client *ledger.Client) *LedgerHandler {
	return &LedgerHandler{client: client}
}

// RegisterRoutes 在 ServeMux 上注册路由
func (h *LedgerHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ledger/transaction_status", h.handleTransactionStatus)
}

func (h *LedgerHandler) handleTransactionStatus(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	txHash := r.URL.Query().Get("tx_hash")
	if txHash == "" {
		http.Error(w, "tx_hash is required", http.StatusBadRequest)
		return
	}

	status, err := h.client.TransactionStatus(ctx, &ledger.Receipt{TxHash: txHash})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

package ledger

import (
	"context"
	"net/url"
	"time"

	"akwa/internal/pkg/httpclient"
	"akwa/internal/service/inventory/domain"

	"github.com/pkg/errors"
)

// Client 通过 HTTP 访问账本网关。所有调用都带超时上限，
// 由调用方 context 和 requestTimeout 共同约束。
type Client struct {
	http           *httpclient.Client
	baseURL        string
	requestTimeout time.Duration
}

// NewClient 创建账本网关客户端
func NewClient(http *httpclient.Client, baseURL string, requestTimeout time.Duration) *Client {
	return &Client{http: http, baseURL: baseURL, requestTimeout: requestTimeout}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

// SubmitAction 提交一条动作记录，返回交易回执。
// 网关按 EntryID 去重，同一条目重复提交返回原回执。
func (c *Client) SubmitAction(ctx context.Context, req *SubmitRequest) (*Receipt, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var receipt Receipt
	if err := c.http.PostJSON(ctx, c.baseURL+"/actions", req, &receipt); err != nil {
		return nil, errors.Wrapf(domain.ErrLedgerSubmitFailed, "entry %s: %v", req.EntryID, err)
	}
	return &receipt, nil
}

// QueryPermission 查询 actor 是否拥有 capability
func (c *Client) QueryPermission(ctx context.Context, actor, capability string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query := url.Values{}
	query.Set("actor", actor)
	query.Set("capability", capability)

	var resp struct {
		Granted bool `json:"granted"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"/permissions", query, &resp); err != nil {
		return false, errors.Wrap(err, "ledger permission query failed")
	}
	return resp.Granted, nil
}

// KnownCapabilities 返回账本侧声明的能力列表，启动时核对用
func (c *Client) KnownCapabilities(ctx context.Context) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var resp struct {
		Capabilities []string `json:"capabilities"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"/capabilities", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Capabilities, nil
}

// TransactionStatus 按回执查询交易状态
func (c *Client) TransactionStatus(ctx context.Context, receipt *Receipt) (*TxStatus, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var status TxStatus
	if err := c.http.GetJSON(ctx, c.baseURL+"/transactions/"+receipt.TxHash, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

package courier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"riskhub_v1_202610/pkg/utils"
)

// GatewayConfig 物流网关配置
type GatewayConfig struct {
	BaseURL string // e.g. http://acs-adapter:8081
	APIKey  string
	Timeout time.Duration
}

// GatewayClient 通过 HTTP 网关查询物流商
// 网关负责对接各家原生协议，这里只消费归一化后的 JSON
type GatewayClient struct {
	name   string
	client *resty.Client
}

// NewGatewayClient 创建网关客户端
func NewGatewayClient(name string, cfg GatewayConfig) *GatewayClient {
	client := utils.NewRestyClient(cfg.BaseURL, cfg.Timeout)
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}
	return &GatewayClient{name: name, client: client}
}

func (c *GatewayClient) Name() string {
	return c.name
}

// GetVoucherStatus GET /vouchers/{number}/status
func (c *GatewayClient) GetVoucherStatus(ctx context.Context, voucherNumber string) (*TrackingStatus, error) {
	var (
		status  TrackingStatus
		errBody map[string]any
	)
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&status).
		SetError(&errBody).
		Get("/vouchers/" + url.PathEscape(voucherNumber) + "/status")
	if err != nil {
		return nil, fmt.Errorf("%s 查询失败: %w", c.name, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", c.name, voucherNumber, ErrVoucherNotFound)
	case resp.IsError():
		return nil, fmt.Errorf("%s 查询失败: HTTP %d: %v", c.name, resp.StatusCode(), errBody)
	}
	return &status, nil
}

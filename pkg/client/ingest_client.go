package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"riskhub_v1_202610/internal/api/dto"
	"riskhub_v1_202610/pkg/signature"
	"riskhub_v1_202610/pkg/utils"
)

// Config 店铺侧推送客户端配置
type Config struct {
	BaseURL string
	APIKey  string
	Secret  string
	Timeout time.Duration
}

// APIError 服务端返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Code       string            `json:"error"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("riskhub: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("riskhub: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IngestClient 对每个请求做 HMAC 签名后推送到风控服务
type IngestClient struct {
	apiKey string
	secret string
	client *resty.Client
	now    func() time.Time
}

func NewIngestClient(cfg Config) (*IngestClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("riskhub: base url 不能为空")
	}
	if cfg.APIKey == "" || cfg.Secret == "" {
		return nil, errors.New("riskhub: api key 和 secret 不能为空")
	}
	return &IngestClient{
		apiKey: cfg.APIKey,
		secret: cfg.Secret,
		client: utils.NewRestyClient(cfg.BaseURL, cfg.Timeout),
		now:    time.Now,
	}, nil
}

// SendOrder POST /api/orders
func (c *IngestClient) SendOrder(ctx context.Context, p dto.OrderPayload) (*dto.IngestResp, error) {
	var out dto.IngestResp
	if err := c.do(ctx, http.MethodPost, "/api/orders", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendVoucher POST /api/vouchers
func (c *IngestClient) SendVoucher(ctx context.Context, p dto.VoucherPayload) (*dto.IngestResp, error) {
	var out dto.IngestResp
	if err := c.do(ctx, http.MethodPost, "/api/vouchers", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCustomerStats GET /api/customers/:hash/stats
func (c *IngestClient) GetCustomerStats(ctx context.Context, hash string) (*dto.CustomerStatResp, error) {
	var out dto.CustomerStatResp
	path := "/api/customers/" + url.PathEscape(hash) + "/stats"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *IngestClient) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("riskhub: 序列化请求失败: %w", err)
		}
		body = b
	}

	// 签名的字节必须和实际发送的 body 完全一致
	ts := strconv.FormatInt(c.now().Unix(), 10)
	sig := signature.Sign(c.secret, ts, method, path, body)

	req := c.client.R().
		SetContext(ctx).
		SetHeader(signature.HeaderAPIKey, c.apiKey).
		SetHeader(signature.HeaderTimestamp, ts).
		SetHeader(signature.HeaderSignature, sig).
		SetResult(out).
		SetError(&APIError{})
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("riskhub: 请求失败: %w", err)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr == nil {
			apiErr = &APIError{}
		}
		apiErr.StatusCode = resp.StatusCode()
		return apiErr
	}
	return nil
}

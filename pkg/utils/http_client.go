package utils

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultHTTPTimeout 外部接口默认超时
const DefaultHTTPTimeout = 20 * time.Second

// NewRestyClient 创建统一配置的 Resty 客户端（超时、UA、5xx 重试）
func NewRestyClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "RiskHub/1.0").
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
}

package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"riskhub_v1_202610/internal/metrics"
	"riskhub_v1_202610/internal/model"
	"riskhub_v1_202610/internal/service"
	"riskhub_v1_202610/pkg/logger"
	"riskhub_v1_202610/pkg/signature"
)

// ==================== HMAC 签名认证 ====================

const (
	// DefaultReplayWindow 请求时间戳允许的偏差
	DefaultReplayWindow = 300 * time.Second
	// DefaultMaxBodyBytes 签名校验时读取的最大请求体
	DefaultMaxBodyBytes = 1 << 20
)

// ShopLookup 按 API Key 查启用中的店铺
type ShopLookup interface {
	GetActiveByAPIKey(ctx context.Context, apiKey string) (*model.Shop, error)
}

// HMACAuthConfig 签名认证配置
type HMACAuthConfig struct {
	ReplayWindow time.Duration
	MaxBodyBytes int64
	Now          func() time.Time
}

// HMACAuth 店铺 webhook 签名认证
// signature = hex(HMAC-SHA256(secret, timestamp + METHOD + path + body))
// 校验通过后店铺写入 gin 上下文与 request context，请求体原样还原
func HMACAuth(shops ShopLookup, cfg HMACAuthConfig, log *zap.Logger) gin.HandlerFunc {
	if cfg.ReplayWindow <= 0 {
		cfg.ReplayWindow = DefaultReplayWindow
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader(signature.HeaderAPIKey))
		tsHeader := strings.TrimSpace(c.GetHeader(signature.HeaderTimestamp))
		received := strings.TrimSpace(c.GetHeader(signature.HeaderSignature))

		// 1. 三个头缺一不可
		if apiKey == "" || tsHeader == "" || received == "" {
			unauthorized(c, "missing_headers", "缺少认证信息")
			return
		}

		// 2. 店铺必须存在且启用
		shop, err := shops.GetActiveByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			if service.KindOf(err) == service.KindNotFound {
				unauthorized(c, "invalid_credentials", "认证失败")
				return
			}
			log.Error("店铺查询失败", zap.String("api_key", logger.Redact(apiKey)), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "认证服务暂不可用"})
			return
		}

		// 3. 时间戳在重放窗口内
		ts, err := strconv.ParseInt(tsHeader, 10, 64)
		if err != nil {
			unauthorized(c, "invalid_timestamp", "时间戳格式错误")
			return
		}
		skew := cfg.Now().Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > cfg.ReplayWindow {
			unauthorized(c, "expired", "请求已过期")
			return
		}

		// 4. 读取原始请求体参与签名，之后还原给下游
		body, err := readBody(c, cfg.MaxBodyBytes)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload_too_large", "message": "请求体过大"})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "请求体读取失败"})
			return
		}

		// 5. 常量时间比较
		expected := signature.Sign(shop.Secret, tsHeader, c.Request.Method, c.Request.URL.Path, body)
		if !signature.Verify(expected, received) {
			log.Warn("签名校验失败",
				zap.String("api_key", logger.Redact(apiKey)),
				zap.Int64("shop_id", shop.ID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("expected", expected),
				zap.String("received", received),
			)
			unauthorized(c, "bad_signature", "认证失败")
			return
		}

		c.Set(ContextKeyShop, shop)
		c.Request = c.Request.WithContext(WithShop(c.Request.Context(), shop))
		c.Next()
	}
}

func readBody(c *gin.Context, limit int64) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		return nil, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func unauthorized(c *gin.Context, reason, message string) {
	metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}

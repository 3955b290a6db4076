package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ShopRateLimiter 每个店铺一个令牌桶
type ShopRateLimiter struct {
	limiters sync.Map // shopID -> *rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewShopRateLimiter rps <= 0 表示不限流
func NewShopRateLimiter(rps float64, burst int) *ShopRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ShopRateLimiter{rps: rate.Limit(rps), burst: burst}
}

// Allow 店铺本次请求是否放行
func (l *ShopRateLimiter) Allow(shopID int64) bool {
	if l.rps <= 0 {
		return true
	}
	actual, _ := l.limiters.LoadOrStore(shopID, rate.NewLimiter(l.rps, l.burst))
	return actual.(*rate.Limiter).Allow()
}

// ShopRateLimit 单店铺写入限流，需挂在 HMACAuth 之后
func ShopRateLimit(limiter *ShopRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(GetShopID(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "too_many_requests",
				"message": "请求过于频繁，请稍后重试",
			})
			return
		}
		c.Next()
	}
}

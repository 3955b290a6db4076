package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== CooldownLimiter 冷却限流器 ====================

// CooldownLimiter 同一个 key 在冷却间隔内只允许执行一次
// 用于手动刷新运单，避免频繁打到物流商接口
type CooldownLimiter struct {
	locks sync.Map // key -> *cooldownEntry
}

type cooldownEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// NewCooldownLimiter 创建冷却限流器
func NewCooldownLimiter() *CooldownLimiter {
	return &CooldownLimiter{}
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查并占用本次执行
func (r *CooldownLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &cooldownEntry{})
	entry := actual.(*cooldownEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(entry.lastTime)
	if elapsed < interval {
		return CheckResult{Allowed: false, RetryAfter: interval - elapsed}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key
func (r *CooldownLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// VoucherRefreshKey 店铺 + 运单维度的 key
func VoucherRefreshKey(shopID int64, voucherID string) string {
	return fmt.Sprintf("shop:%d:voucher:%s:refresh", shopID, voucherID)
}

// RefreshCooldown 手动刷新运单的冷却中间件，需挂在 HMACAuth 之后
func RefreshCooldown(limiter *CooldownLimiter, interval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := VoucherRefreshKey(GetShopID(c), c.Param("id"))

		result := limiter.Check(key, interval)
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too_many_requests",
				"message":     formatRetryMessage(result.RetryAfter),
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("刷新冷却中，请 %d 秒后重试", seconds+1)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60
	if remainingSeconds == 0 {
		return fmt.Sprintf("刷新冷却中，请 %d 分钟后重试", minutes)
	}
	return fmt.Sprintf("刷新冷却中，请 %d 分 %d 秒后重试", minutes, remainingSeconds)
}

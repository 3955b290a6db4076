package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"riskhub_v1_202610/internal/controller"
	"riskhub_v1_202610/internal/metrics"
	"riskhub_v1_202610/internal/middleware"
)

// Controllers 路由依赖的控制器
type Controllers struct {
	Order    *controller.OrderController
	Voucher  *controller.VoucherController
	Customer *controller.CustomerController
	Health   *controller.HealthController
}

// Options 中间件参数
type Options struct {
	Shops           middleware.ShopLookup
	Auth            middleware.HMACAuthConfig
	RateLimiter     *middleware.ShopRateLimiter
	Cooldown        *middleware.CooldownLimiter
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	Logger          *zap.Logger
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctl Controllers, opts Options) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RateLimiter == nil {
		opts.RateLimiter = middleware.NewShopRateLimiter(0, 0)
	}
	if opts.Cooldown == nil {
		opts.Cooldown = middleware.NewCooldownLimiter()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = time.Minute
	}

	r.Use(metrics.Instrument(), middleware.RequestLogger(opts.Logger))

	// 1. 运维
	r.GET("/healthz", ctl.Health.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 2. 店铺 webhook，全部需要 HMAC 签名
	api := r.Group("/api")
	api.Use(
		middleware.RequestTimeout(opts.RequestTimeout),
		middleware.HMACAuth(opts.Shops, opts.Auth, opts.Logger),
		middleware.ShopRateLimit(opts.RateLimiter),
	)
	{
		orders := api.Group("/orders")
		{
			// POST /api/orders
			orders.POST("", ctl.Order.Create)
			// GET /api/orders/:id
			orders.GET("/:id", ctl.Order.Get)
		}

		vouchers := api.Group("/vouchers")
		{
			// POST /api/vouchers
			vouchers.POST("", ctl.Voucher.Create)
			// GET /api/vouchers/:id
			vouchers.GET("/:id", ctl.Voucher.Get)
			// POST /api/vouchers/:id/refresh
			vouchers.POST("/:id/refresh", middleware.RefreshCooldown(opts.Cooldown, opts.RefreshInterval), ctl.Voucher.Refresh)
		}

		customers := api.Group("/customers")
		{
			// GET /api/customers/:hash/stats
			customers.GET("/:hash/stats", ctl.Customer.GetStats)
		}
	}
}

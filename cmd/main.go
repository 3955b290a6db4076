package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"riskhub_v1_202610/internal/middleware"
	"riskhub_v1_202610/internal/router"
)

func main() {
	app := &cli.App{
		Name:  "riskhub",
		Usage: "订单/运单接入与客户配送风险评分服务",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（yaml/json/toml）",
				EnvVars: []string{"RISKHUB_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			shopCommand(),
			statsCommand(),
			trackingCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

// ==================== serve ====================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "启动 HTTP 服务",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Usage: "启动前自动建表"},
		},
		Action: func(c *cli.Context) error {
			deps, err := initDependencies(c.Context, c.String("config"), c.Bool("migrate"))
			if err != nil {
				return err
			}
			defer deps.Close()
			return runServer(deps)
		},
	}
}

func runServer(deps *Dependencies) error {
	cfg := deps.Config
	log := deps.Logger

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	router.InitRoutes(r, deps.Controllers, router.Options{
		Shops:           deps.Services.Shop,
		Auth:            middleware.HMACAuthConfig{ReplayWindow: cfg.Auth.ReplayWindow},
		RateLimiter:     middleware.NewShopRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Cooldown:        middleware.NewCooldownLimiter(),
		RefreshInterval: cfg.Tracking.RefreshCooldown,
		RequestTimeout:  cfg.Server.RequestTimeout,
		Logger:          log,
	})

	// 启动定时任务
	if cfg.Tracking.Enabled {
		pollTask := newTrackingTask(deps)
		if err := pollTask.Start(); err != nil {
			return fmt.Errorf("物流轮询任务启动失败: %w", err)
		}
		defer pollTask.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 异步启动服务
	errCh := make(chan error, 1)
	go func() {
		log.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	case <-quit:
	}

	log.Info("正在关闭服务...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务强制关闭: %w", err)
	}
	log.Info("服务已退出")
	return nil
}

// ==================== migrate ====================

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "自动建表/迁移",
		Action: func(c *cli.Context) error {
			deps, err := initDependencies(c.Context, c.String("config"), true)
			if err != nil {
				return err
			}
			defer deps.Close()
			deps.Logger.Info("数据库迁移完成")
			return nil
		},
	}
}

// ==================== shop ====================

func shopCommand() *cli.Command {
	return &cli.Command{
		Name:  "shop",
		Usage: "店铺（租户）管理",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "开通店铺并生成 API Key / Secret（只显示一次）",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "slug", Usage: "为空时由 name 生成"},
				},
				Action: func(c *cli.Context) error {
					deps, err := initDependencies(c.Context, c.String("config"), false)
					if err != nil {
						return err
					}
					defer deps.Close()

					shop, err := deps.Services.Shop.CreateShop(c.Context, c.String("name"), c.String("slug"))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "shop_id: %d\nslug:    %s\napi_key: %s\nsecret:  %s\n", shop.ID, shop.Slug, shop.APIKey, shop.Secret)
					fmt.Fprintln(c.App.Writer, "请妥善保存 secret，之后不会再显示")
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "店铺列表",
				Action: func(c *cli.Context) error {
					deps, err := initDependencies(c.Context, c.String("config"), false)
					if err != nil {
						return err
					}
					defer deps.Close()

					shops, err := deps.Services.Shop.ListShops(c.Context)
					if err != nil {
						return err
					}
					for _, s := range shops {
						fmt.Fprintf(c.App.Writer, "%d\t%s\t%s\tactive=%t\n", s.ID, s.Slug, s.APIKey, s.Active)
					}
					return nil
				},
			},
			shopActiveCommand("enable", true),
			shopActiveCommand("disable", false),
		},
	}
}

func shopActiveCommand(name string, active bool) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     "启用/停用店铺",
		ArgsUsage: "<slug>",
		Action: func(c *cli.Context) error {
			slug := c.Args().First()
			if slug == "" {
				return errors.New("缺少店铺 slug")
			}
			deps, err := initDependencies(c.Context, c.String("config"), false)
			if err != nil {
				return err
			}
			defer deps.Close()
			return deps.Services.Shop.SetActive(c.Context, slug, active)
		},
	}
}

// ==================== stats ====================

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "客户统计",
		Subcommands: []*cli.Command{
			{
				Name:  "recompute",
				Usage: "重算客户统计与风险分（--hash 指定单个，否则全量）",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "hash", Usage: "customer_hash"},
					&cli.IntFlag{Name: "batch", Value: 500, Usage: "全量重算每批客户数"},
				},
				Action: func(c *cli.Context) error {
					deps, err := initDependencies(c.Context, c.String("config"), false)
					if err != nil {
						return err
					}
					defer deps.Close()

					if hash := c.String("hash"); hash != "" {
						stat, err := deps.Services.Stats.Recompute(c.Context, hash)
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "%s\torders=%d\treturns=%d\tlate=%d\tscore=%d\t%s\n",
							stat.CustomerHash, stat.TotalOrders, stat.Returns, stat.LateDeliveries, stat.DeliveryRiskScore, stat.RiskLevel)
						return nil
					}

					n, err := deps.Services.Stats.RecomputeAll(c.Context, c.Int("batch"))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "已重算 %d 个客户\n", n)
					return nil
				},
			},
		},
	}
}

// ==================== tracking ====================

func trackingCommand() *cli.Command {
	return &cli.Command{
		Name:  "tracking",
		Usage: "物流状态轮询",
		Subcommands: []*cli.Command{
			{
				Name:  "poll",
				Usage: "立即执行一轮轮询",
				Action: func(c *cli.Context) error {
					deps, err := initDependencies(c.Context, c.String("config"), false)
					if err != nil {
						return err
					}
					defer deps.Close()

					sum := newTrackingTask(deps).RunOnce(c.Context)
					fmt.Fprintf(c.App.Writer, "total=%d succeeded=%d failed=%d new_events=%d\n",
						sum.Total, sum.Succeeded, sum.Failed, sum.NewEvents)
					return nil
				},
			},
		},
	}
}

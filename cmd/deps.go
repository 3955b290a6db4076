package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"riskhub_v1_202610/internal/config"
	"riskhub_v1_202610/internal/controller"
	"riskhub_v1_202610/internal/courier"
	"riskhub_v1_202610/internal/metrics"
	"riskhub_v1_202610/internal/model"
	"riskhub_v1_202610/internal/repository"
	"riskhub_v1_202610/internal/router"
	"riskhub_v1_202610/internal/service"
	"riskhub_v1_202610/internal/task"
	"riskhub_v1_202610/pkg/database"
	"riskhub_v1_202610/pkg/logger"
	"riskhub_v1_202610/pkg/pseudonym"
)

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Controllers router.Controllers
}

// Repositories 仓库集合
type Repositories struct {
	Shop     repository.ShopRepository
	Order    repository.OrderRepository
	Voucher  repository.VoucherRepository
	IngestUw *repository.IngestUnitOfWork
}

// Services 服务集合
type Services struct {
	Shop     *service.ShopService
	Stats    *service.StatsService
	Ingest   *service.IngestService
	Tracking *service.TrackingService
	Couriers *courier.Registry
}

// ==================== 初始化函数 ====================

// loadConfig 读取并校验配置，初始化日志
func loadConfig(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("配置校验失败: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("日志初始化失败: %w", err)
	}
	return cfg, log, nil
}

// initDatabase 初始化数据库
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	return database.InitDB(cfg.Database.DSN, database.Options{
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
}

// initDependencies 初始化所有依赖
func initDependencies(ctx context.Context, configPath string, migrate bool) (*Dependencies, error) {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	db, err := initDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.Migrate(ctx, db, model.Models()...); err != nil {
			return nil, err
		}
	}

	hasher, err := pseudonym.New(cfg.Pseudonym.Salt)
	if err != nil {
		return nil, err
	}

	metrics.Register()

	// -------- Repo 层 --------
	repos := &Repositories{
		Shop:     repository.NewShopRepository(db),
		Order:    repository.NewOrderRepository(db),
		Voucher:  repository.NewVoucherRepository(db),
		IngestUw: repository.NewIngestUnitOfWork(db),
	}

	// -------- 业务服务 --------
	locker := service.NewCustomerLocker()
	policy := service.RiskPolicy{
		ReturnWeight: cfg.Risk.ReturnWeight,
		LateWeight:   cfg.Risk.LateWeight,
		GreenMax:     cfg.Risk.GreenMax,
		YellowMax:    cfg.Risk.YellowMax,
	}

	services := &Services{
		Shop:     service.NewShopService(repos.Shop, log),
		Stats:    service.NewStatsService(repos.IngestUw, locker, policy, cfg.Risk.LateDeliveryThreshold, log),
		Couriers: initCouriers(cfg),
	}
	services.Ingest = service.NewIngestService(repos.IngestUw, hasher, services.Stats, locker, cfg.Server.RequestTimeout, log)
	services.Tracking = service.NewTrackingService(repos.IngestUw, services.Ingest, services.Couriers, trackingLocation(cfg, log), log)

	// -------- Controller 层 --------
	voucherCtl := controller.NewVoucherController(services.Ingest, repos.Voucher)
	voucherCtl.SetTrackingService(services.Tracking)

	return &Dependencies{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Repos:    repos,
		Services: services,
		Controllers: router.Controllers{
			Order:    controller.NewOrderController(services.Ingest, repos.Order),
			Voucher:  voucherCtl,
			Customer: controller.NewCustomerController(services.Stats),
			Health:   controller.NewHealthController(db),
		},
	}, nil
}

// initCouriers 按配置注册物流商网关
func initCouriers(cfg *config.Config) *courier.Registry {
	registry := courier.NewRegistry()
	for name, cc := range cfg.Couriers {
		registry.Register(courier.NewGatewayClient(name, courier.GatewayConfig{
			BaseURL: cc.BaseURL,
			APIKey:  cc.APIKey,
			Timeout: cc.Timeout,
		}))
	}
	return registry
}

// trackingLocation 物流轨迹时区，加载失败退回 UTC
func trackingLocation(cfg *config.Config, log *zap.Logger) *time.Location {
	loc, err := time.LoadLocation(cfg.Tracking.Timezone)
	if err != nil {
		log.Warn("物流时区加载失败，使用 UTC", zap.String("timezone", cfg.Tracking.Timezone), zap.Error(err))
		return time.UTC
	}
	return loc
}

// newTrackingTask 物流轮询任务
func newTrackingTask(deps *Dependencies) *task.TrackingPollTask {
	return task.NewTrackingPollTask(deps.Repos.Voucher, deps.Services.Tracking, task.TrackingPollConfig{
		Spec:        deps.Config.Tracking.Spec,
		Concurrency: deps.Config.Tracking.Concurrency,
		BatchSize:   deps.Config.Tracking.BatchSize,
	}, deps.Logger)
}

// Close 释放数据库连接并刷新日志
func (d *Dependencies) Close() {
	if sqlDB, err := d.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = d.Logger.Sync()
}

package task

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"riskhub_v1_202610/internal/model"
	"riskhub_v1_202610/internal/repository"
	"riskhub_v1_202610/internal/service"
)

// ==================== 外部依赖接口 ====================

// VoucherRefresher 单个运单的状态刷新
type VoucherRefresher interface {
	RefreshVoucher(ctx context.Context, voucher *model.Voucher) (*service.IngestResult, error)
	// Couriers 已配置客户端的物流商，只轮询这些物流商的运单
	Couriers() []string
}

// ==================== TrackingPollTask 物流状态轮询任务 ====================

// TrackingPollConfig 轮询配置
type TrackingPollConfig struct {
	Spec        string        // cron 表达式（带秒）
	Concurrency int           // 同时查询的运单数
	BatchSize   int           // 单轮最多处理的运单数
	JobTimeout  time.Duration // 单轮总超时
}

// PollSummary 单轮结果
type PollSummary struct {
	Total     int
	Succeeded int
	Failed    int
	NewEvents int64
}

// TrackingPollTask 定时查询未完结运单的物流状态
// 结果走 IngestVoucher，与 webhook 写入同一条链路
type TrackingPollTask struct {
	vouchers  repository.VoucherRepository
	refresher VoucherRefresher
	cron      *cron.Cron
	cfg       TrackingPollConfig
	logger    *zap.Logger
	running   atomic.Bool
}

// NewTrackingPollTask 创建轮询任务
func NewTrackingPollTask(vouchers repository.VoucherRepository, refresher VoucherRefresher, cfg TrackingPollConfig, log *zap.Logger) *TrackingPollTask {
	if cfg.Spec == "" {
		cfg.Spec = "0 0/30 * * * *"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TrackingPollTask{
		vouchers:  vouchers,
		refresher: refresher,
		cron:      cron.New(cron.WithSeconds()),
		cfg:       cfg,
		logger:    log.Named("tracking_poll"),
	}
}

// Start 启动定时任务
func (t *TrackingPollTask) Start() error {
	_, err := t.cron.AddFunc(t.cfg.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.JobTimeout)
		defer cancel()
		t.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	t.cron.Start()
	t.logger.Info("物流轮询任务已启动", zap.String("spec", t.cfg.Spec), zap.Int("concurrency", t.cfg.Concurrency))
	return nil
}

// Stop 停止定时任务，等待正在执行的一轮结束
func (t *TrackingPollTask) Stop() {
	<-t.cron.Stop().Done()
	t.logger.Info("物流轮询任务已停止")
}

// RunOnce 执行一轮轮询；上一轮未结束时直接跳过
func (t *TrackingPollTask) RunOnce(ctx context.Context) PollSummary {
	var summary PollSummary
	if !t.running.CompareAndSwap(false, true) {
		t.logger.Warn("上一轮轮询仍在执行，跳过")
		return summary
	}
	defer t.running.Store(false)

	couriers := t.refresher.Couriers()
	if len(couriers) == 0 {
		t.logger.Debug("未配置物流商客户端，跳过轮询")
		return summary
	}

	vouchers, err := t.vouchers.GetPendingTracking(ctx, couriers, t.cfg.BatchSize)
	if err != nil {
		t.logger.Error("获取待轮询运单失败", zap.Error(err))
		return summary
	}
	if len(vouchers) == 0 {
		return summary
	}
	summary.Total = len(vouchers)
	t.logger.Info("开始轮询物流状态", zap.Int("count", len(vouchers)))

	var succeeded, failed, newEvents atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Concurrency)

	for i := range vouchers {
		v := &vouchers[i]
		if gctx.Err() != nil {
			t.logger.Warn("轮询超时停止", zap.Error(gctx.Err()))
			break
		}
		g.Go(func() error {
			// 无论成败都记录轮询时间，持续失败的运单排到队尾
			if err := t.vouchers.MarkPolled(gctx, v.ID, time.Now().UTC()); err != nil {
				t.logger.Warn("记录轮询时间失败", zap.Int64("voucher_id", v.ID), zap.Error(err))
			}
			result, err := t.refresher.RefreshVoucher(gctx, v)
			if err != nil {
				failed.Add(1)
				t.logger.Warn("运单刷新失败",
					zap.Int64("voucher_id", v.ID),
					zap.String("voucher_number", v.VoucherNumber),
					zap.String("courier", v.Courier),
					zap.Error(err),
				)
				// 单个运单失败不影响其他运单
				return nil
			}
			succeeded.Add(1)
			newEvents.Add(result.NewEvents)
			return nil
		})
	}
	_ = g.Wait()

	summary.Succeeded = int(succeeded.Load())
	summary.Failed = int(failed.Load())
	summary.NewEvents = newEvents.Load()
	t.logger.Info("物流轮询完成",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int64("new_events", summary.NewEvents),
	)
	return summary
}

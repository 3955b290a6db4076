package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"riskhub_v1_202610/internal/metrics"
	"riskhub_v1_202610/internal/model"
	"riskhub_v1_202610/internal/repository"
	"riskhub_v1_202610/pkg/logger"
	"riskhub_v1_202610/pkg/pseudonym"
)

// DefaultLateDeliveryThreshold 发货到签收超过 5 天算迟到
const DefaultLateDeliveryThreshold = 5 * 24 * time.Hour

// StatsService 客户统计聚合
// 每次都从订单/运单全量重算，不做增量计数
type StatsService struct {
	uow           *repository.IngestUnitOfWork
	locker        *CustomerLocker
	policy        RiskPolicy
	lateThreshold time.Duration
	logger        *zap.Logger
}

// NewStatsService 创建统计服务
func NewStatsService(uow *repository.IngestUnitOfWork, locker *CustomerLocker, policy RiskPolicy, lateThreshold time.Duration, log *zap.Logger) *StatsService {
	if lateThreshold <= 0 {
		lateThreshold = DefaultLateDeliveryThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsService{
		uow:           uow,
		locker:        locker,
		policy:        policy,
		lateThreshold: lateThreshold,
		logger:        log,
	}
}

// Policy 当前评分策略
func (s *StatsService) Policy() RiskPolicy {
	return s.policy
}

// Recompute 独立事务中重算一个客户的统计（命令行、管理操作使用）
func (s *StatsService) Recompute(ctx context.Context, customerHash string) (*model.CustomerStat, error) {
	if !pseudonym.IsDigest(customerHash) {
		return nil, NewValidationError(map[string]string{"customer_hash": "len=64,hexadecimal"})
	}

	unlock, err := s.locker.Lock(ctx, customerHash)
	if err != nil {
		return nil, WrapStorage("等待客户锁超时", err)
	}
	defer unlock()

	var stat *model.CustomerStat
	err = s.uow.Transaction(ctx, func(tx *repository.IngestUnitOfWork) error {
		var err error
		stat, err = s.RecomputeIn(ctx, tx, customerHash)
		return err
	})
	if err != nil {
		return nil, WrapStorage("统计重算失败", err)
	}
	return stat, nil
}

// RecomputeIn 在调用方的事务内重算，调用方负责持有客户锁
func (s *StatsService) RecomputeIn(ctx context.Context, tx *repository.IngestUnitOfWork, customerHash string) (*model.CustomerStat, error) {
	customer, err := tx.Customers.GetByHashForUpdate(ctx, customerHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("客户不存在")
		}
		return nil, err
	}

	orders, err := tx.Orders.ListByCustomerHash(ctx, customerHash)
	if err != nil {
		return nil, err
	}
	vouchers, err := tx.Vouchers.ListByCustomerHash(ctx, customerHash)
	if err != nil {
		return nil, err
	}

	// 1. 计数落库
	stat := Aggregate(orders, vouchers, s.lateThreshold)
	stat.CustomerID = customer.ID
	stat.CustomerHash = customerHash
	stat.Metadata = datatypes.JSONMap{
		"vouchers":         len(vouchers),
		"late_threshold":   s.lateThreshold.String(),
		"last_computed_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := tx.Stats.UpsertCounters(ctx, stat); err != nil {
		return nil, err
	}

	// 2. 以落库后的计数评分，写回同一行
	stored, err := tx.Stats.GetByHash(ctx, customerHash)
	if err != nil {
		return nil, err
	}
	score, level := s.policy.Evaluate(stored)
	if err := tx.Stats.UpdateScore(ctx, customerHash, score, level); err != nil {
		return nil, err
	}
	stored.DeliveryRiskScore = score
	stored.RiskLevel = level

	metrics.RecomputeTotal.Inc()
	metrics.RiskLevelTotal.WithLabelValues(level).Inc()
	s.logger.Debug("客户统计已重算",
		zap.String("customer_hash", logger.Redact(customerHash)),
		zap.Int("total_orders", stored.TotalOrders),
		zap.Int("returns", stored.Returns),
		zap.Int("late_deliveries", stored.LateDeliveries),
		zap.Int("score", score),
		zap.String("level", level),
	)
	return stored, nil
}

// RecomputeAll 逐批重算全部客户，返回处理数量；单个客户失败只记录日志
func (s *StatsService) RecomputeAll(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 200
	}
	var (
		afterID int64
		count   int
	)
	for {
		customers, err := s.uow.Customers.ListAfter(ctx, afterID, batchSize)
		if err != nil {
			return count, WrapStorage("读取客户失败", err)
		}
		if len(customers) == 0 {
			return count, nil
		}
		for _, c := range customers {
			if ctx.Err() != nil {
				return count, ctx.Err()
			}
			if _, err := s.Recompute(ctx, c.CustomerHash); err != nil {
				s.logger.Warn("客户统计重算失败",
					zap.Int64("customer_id", c.ID),
					zap.String("customer_hash", logger.Redact(c.CustomerHash)),
					zap.Error(err),
				)
				continue
			}
			count++
		}
		afterID = customers[len(customers)-1].ID
	}
}

// GetStat 查询客户当前统计
func (s *StatsService) GetStat(ctx context.Context, customerHash string) (*model.CustomerStat, error) {
	if !pseudonym.IsDigest(customerHash) {
		return nil, NewValidationError(map[string]string{"customer_hash": "len=64,hexadecimal"})
	}
	stat, err := s.uow.Stats.GetByHash(ctx, customerHash)
	if err != nil {
		return nil, WrapStorage("客户统计不存在", err)
	}
	return stat, nil
}

// Aggregate 由订单与运单计算计数字段（不含评分）
// 订单时间优先取 ordered_at，缺失时用入库时间
func Aggregate(orders []model.Order, vouchers []model.Voucher, lateThreshold time.Duration) *model.CustomerStat {
	stat := &model.CustomerStat{TotalOrders: len(orders)}

	for i := range orders {
		at := orders[i].CreatedAt
		if orders[i].OrderedAt != nil {
			at = *orders[i].OrderedAt
		}
		if at.IsZero() {
			continue
		}
		if stat.FirstOrderAt == nil || at.Before(*stat.FirstOrderAt) {
			t := at
			stat.FirstOrderAt = &t
		}
		if stat.LastOrderAt == nil || at.After(*stat.LastOrderAt) {
			t := at
			stat.LastOrderAt = &t
		}
	}

	for i := range vouchers {
		switch {
		case vouchers[i].Status == model.VoucherStatusReturned:
			stat.Returns++
		case vouchers[i].IsLate(lateThreshold):
			stat.LateDeliveries++
		}
	}
	return stat
}

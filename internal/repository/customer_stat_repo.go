package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"riskhub_v1_202610/internal/model"
)

// CustomerStatRepository 客户统计仓储接口
type CustomerStatRepository interface {
	// UpsertCounters 第一阶段：写入计数字段（不动评分）
	UpsertCounters(ctx context.Context, stat *model.CustomerStat) error
	// UpdateScore 第二阶段：写回评分
	UpdateScore(ctx context.Context, customerHash string, score int, level string) error
	GetByHash(ctx context.Context, customerHash string) (*model.CustomerStat, error)
	ListByLevel(ctx context.Context, level string, limit int) ([]model.CustomerStat, error)
}

type customerStatRepo struct {
	db *gorm.DB
}

// NewCustomerStatRepository 创建客户统计仓储
func NewCustomerStatRepository(db *gorm.DB) CustomerStatRepository {
	return &customerStatRepo{db: db}
}

func (r *customerStatRepo) UpsertCounters(ctx context.Context, stat *model.CustomerStat) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "customer_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"customer_id",
				"total_orders",
				"returns",
				"late_deliveries",
				"first_order_at",
				"last_order_at",
				"metadata",
				"updated_at",
			}),
		}).
		Create(stat).Error
}

func (r *customerStatRepo) UpdateScore(ctx context.Context, customerHash string, score int, level string) error {
	return r.db.WithContext(ctx).
		Model(&model.CustomerStat{}).
		Where("customer_hash = ?", customerHash).
		Updates(map[string]interface{}{
			"delivery_risk_score": score,
			"risk_level":          level,
			"updated_at":          time.Now(),
		}).Error
}

func (r *customerStatRepo) GetByHash(ctx context.Context, customerHash string) (*model.CustomerStat, error) {
	var stat model.CustomerStat
	if err := r.db.WithContext(ctx).
		Where("customer_hash = ?", customerHash).
		First(&stat).Error; err != nil {
		return nil, err
	}
	return &stat, nil
}

func (r *customerStatRepo) ListByLevel(ctx context.Context, level string, limit int) ([]model.CustomerStat, error) {
	var stats []model.CustomerStat
	db := r.db.WithContext(ctx).Order("delivery_risk_score DESC, id ASC")
	if level != "" {
		db = db.Where("risk_level = ?", level)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&stats).Error
	return stats, err
}

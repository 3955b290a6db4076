package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"riskhub_v1_202610/internal/model"
)

// ==================== OrderRepository 订单仓库 ====================

// OrderRepository 订单仓库接口
type OrderRepository interface {
	// Upsert 按 (shop_id, external_order_id) 整行覆盖写入，返回落库后的记录
	Upsert(ctx context.Context, order *model.Order) (*model.Order, error)
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetByShopAndExternalID(ctx context.Context, shopID int64, externalOrderID string) (*model.Order, error)
	GetByIDForShop(ctx context.Context, shopID, id int64) (*model.Order, error)
	ListByCustomerHash(ctx context.Context, customerHash string) ([]model.Order, error)
	CountByShop(ctx context.Context, shopID int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// ==================== 实现 ====================

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Upsert(ctx context.Context, order *model.Order) (*model.Order, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop_id"}, {Name: "external_order_id"}},
			UpdateAll: true,
		}).
		Omit(clause.Associations).
		Create(order).Error
	if err != nil {
		return nil, err
	}
	// 冲突更新时部分驱动不回填主键，统一按幂等键回读
	return r.GetByShopAndExternalID(ctx, order.ShopID, order.ExternalOrderID)
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByShopAndExternalID(ctx context.Context, shopID int64, externalOrderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_order_id = ?", shopID, externalOrderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByIDForShop 按店铺隔离查询，非本店铺订单视为不存在
func (r *orderRepository) GetByIDForShop(ctx context.Context, shopID, id int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Vouchers").
		Where("id = ? AND shop_id = ?", id, shopID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListByCustomerHash(ctx context.Context, customerHash string) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("customer_hash = ?", customerHash).
		Order("ordered_at ASC, id ASC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) CountByShop(ctx context.Context, shopID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Where("shop_id = ?", shopID).Count(&count).Error
	return count, err
}

func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Order{}, id).Error
}

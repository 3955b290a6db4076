package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"riskhub_v1_202610/internal/model"
)

// ==================== VoucherRepository 运单仓库 ====================

// VoucherRepository 运单仓库接口
type VoucherRepository interface {
	// Upsert 按 (shop_id, voucher_number) 整行覆盖写入，返回落库后的记录
	Upsert(ctx context.Context, voucher *model.Voucher) (*model.Voucher, error)
	GetByID(ctx context.Context, id int64) (*model.Voucher, error)
	GetByShopAndNumber(ctx context.Context, shopID int64, voucherNumber string) (*model.Voucher, error)
	GetByIDForShop(ctx context.Context, shopID, id int64) (*model.Voucher, error)
	ListByCustomerHash(ctx context.Context, customerHash string) ([]model.Voucher, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.Voucher, error)
	// RelinkByOrder 订单换了客户时，把挂在订单上的运单一起改到新客户名下
	RelinkByOrder(ctx context.Context, orderID int64, customerHash string, customerID int64) (int64, error)
	// GetPendingTracking 待轮询运单：非终态、物流商在给定列表内
	// 从未轮询过的优先，其余按最近轮询时间从旧到新
	GetPendingTracking(ctx context.Context, couriers []string, limit int) ([]model.Voucher, error)
	// MarkPolled 记录轮询时间，不改 updated_at
	MarkPolled(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

type voucherRepository struct {
	db *gorm.DB
}

// NewVoucherRepository 创建运单仓库
func NewVoucherRepository(db *gorm.DB) VoucherRepository {
	return &voucherRepository{db: db}
}

func (r *voucherRepository) Upsert(ctx context.Context, voucher *model.Voucher) (*model.Voucher, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop_id"}, {Name: "voucher_number"}},
			UpdateAll: true,
		}).
		Omit(clause.Associations, "last_polled_at").
		Create(voucher).Error
	if err != nil {
		return nil, err
	}
	return r.GetByShopAndNumber(ctx, voucher.ShopID, voucher.VoucherNumber)
}

func (r *voucherRepository) GetByID(ctx context.Context, id int64) (*model.Voucher, error) {
	var voucher model.Voucher
	if err := r.db.WithContext(ctx).First(&voucher, id).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *voucherRepository) GetByShopAndNumber(ctx context.Context, shopID int64, voucherNumber string) (*model.Voucher, error) {
	var voucher model.Voucher
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND voucher_number = ?", shopID, voucherNumber).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *voucherRepository) GetByIDForShop(ctx context.Context, shopID, id int64) (*model.Voucher, error) {
	var voucher model.Voucher
	err := r.db.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB {
			return db.Order("event_time DESC")
		}).
		Where("id = ? AND shop_id = ?", id, shopID).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *voucherRepository) ListByCustomerHash(ctx context.Context, customerHash string) ([]model.Voucher, error) {
	var vouchers []model.Voucher
	err := r.db.WithContext(ctx).
		Where("customer_hash = ?", customerHash).
		Order("id ASC").
		Find(&vouchers).Error
	return vouchers, err
}

func (r *voucherRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.Voucher, error) {
	var vouchers []model.Voucher
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&vouchers).Error
	return vouchers, err
}

func (r *voucherRepository) RelinkByOrder(ctx context.Context, orderID int64, customerHash string, customerID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Voucher{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"customer_hash": customerHash,
			"customer_id":   customerID,
		})
	return result.RowsAffected, result.Error
}

func (r *voucherRepository) GetPendingTracking(ctx context.Context, couriers []string, limit int) ([]model.Voucher, error) {
	if len(couriers) == 0 {
		return nil, nil
	}
	var vouchers []model.Voucher
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []string{
			model.VoucherStatusDelivered,
			model.VoucherStatusReturned,
			model.VoucherStatusFailed,
		}).
		Where("courier IN ?", couriers).
		Order("last_polled_at IS NOT NULL").
		Order("last_polled_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&vouchers).Error
	return vouchers, err
}

func (r *voucherRepository) MarkPolled(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Voucher{}).
		Where("id = ?", id).
		UpdateColumn("last_polled_at", at).Error
}

func (r *voucherRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Voucher{}, id).Error
}

// ==================== CourierEventRepository 物流轨迹仓库 ====================

// CourierEventRepository 物流轨迹仓库接口
type CourierEventRepository interface {
	// Append 追加轨迹，去重键冲突的节点直接忽略，返回实际写入条数
	Append(ctx context.Context, events []model.CourierEvent) (int64, error)
	ListByVoucherID(ctx context.Context, voucherID int64) ([]model.CourierEvent, error)
}

type courierEventRepository struct {
	db *gorm.DB
}

// NewCourierEventRepository 创建物流轨迹仓库
func NewCourierEventRepository(db *gorm.DB) CourierEventRepository {
	return &courierEventRepository{db: db}
}

func (r *courierEventRepository) Append(ctx context.Context, events []model.CourierEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(events, 100)
	return result.RowsAffected, result.Error
}

func (r *courierEventRepository) ListByVoucherID(ctx context.Context, voucherID int64) ([]model.CourierEvent, error) {
	var events []model.CourierEvent
	err := r.db.WithContext(ctx).
		Where("voucher_id = ?", voucherID).
		Order("event_time ASC, id ASC").
		Find(&events).Error
	return events, err
}

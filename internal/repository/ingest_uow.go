package repository

import (
	"context"

	"gorm.io/gorm"
)

// IngestUnitOfWork 写入链路工作单元（事务）
// 订单/运单写入、客户刷新、统计重算在同一个事务里完成
type IngestUnitOfWork struct {
	db        *gorm.DB
	Shops     ShopRepository
	Customers CustomerRepository
	Orders    OrderRepository
	Vouchers  VoucherRepository
	Events    CourierEventRepository
	Stats     CustomerStatRepository
}

// NewIngestUnitOfWork 创建工作单元
func NewIngestUnitOfWork(db *gorm.DB) *IngestUnitOfWork {
	return &IngestUnitOfWork{
		db:        db,
		Shops:     NewShopRepository(db),
		Customers: NewCustomerRepository(db),
		Orders:    NewOrderRepository(db),
		Vouchers:  NewVoucherRepository(db),
		Events:    NewCourierEventRepository(db),
		Stats:     NewCustomerStatRepository(db),
	}
}

// Transaction 执行事务，fn 返回错误时整体回滚
func (u *IngestUnitOfWork) Transaction(ctx context.Context, fn func(uow *IngestUnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewIngestUnitOfWork(tx))
	})
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"riskhub_v1_202610/internal/model"
)

// CustomerRepository 客户仓储接口
type CustomerRepository interface {
	// Touch 不存在则创建（first_seen = last_seen = seenAt），存在则刷新 last_seen_at
	// 返回的行已加行锁（事务内有效）
	Touch(ctx context.Context, customerHash string, seenAt time.Time) (*model.Customer, error)
	GetByHash(ctx context.Context, customerHash string) (*model.Customer, error)
	GetByHashForUpdate(ctx context.Context, customerHash string) (*model.Customer, error)
	// ListAfter 按 id 游标分页，供全量重算使用
	ListAfter(ctx context.Context, afterID int64, limit int) ([]model.Customer, error)
	Delete(ctx context.Context, id int64) error
}

type customerRepo struct {
	db *gorm.DB
}

// NewCustomerRepository 创建客户仓储
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepo{db: db}
}

func (r *customerRepo) Touch(ctx context.Context, customerHash string, seenAt time.Time) (*model.Customer, error) {
	customer := &model.Customer{
		CustomerHash: customerHash,
		FirstSeenAt:  seenAt,
		LastSeenAt:   seenAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "customer_hash"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_seen_at": seenAt,
				"updated_at":   seenAt,
			}),
		}).
		Omit(clause.Associations).
		Create(customer).Error
	if err != nil {
		return nil, err
	}
	return r.GetByHashForUpdate(ctx, customerHash)
}

func (r *customerRepo) GetByHash(ctx context.Context, customerHash string) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.WithContext(ctx).
		Where("customer_hash = ?", customerHash).
		First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetByHashForUpdate SELECT ... FOR UPDATE，同一客户的并发重算在此串行化
func (r *customerRepo) GetByHashForUpdate(ctx context.Context, customerHash string) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_hash = ?", customerHash).
		First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepo) ListAfter(ctx context.Context, afterID int64, limit int) ([]model.Customer, error) {
	var customers []model.Customer
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&customers).Error
	return customers, err
}

func (r *customerRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Customer{}, id).Error
}

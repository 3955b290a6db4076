package repository

import (
	"context"

	"gorm.io/gorm"

	"riskhub_v1_202610/internal/model"
)

// ==================== 接口定义 ====================

// ShopRepository 店铺仓储接口
type ShopRepository interface {
	Create(ctx context.Context, shop *model.Shop) error
	GetByID(ctx context.Context, id int64) (*model.Shop, error)
	GetBySlug(ctx context.Context, slug string) (*model.Shop, error)
	GetActiveByAPIKey(ctx context.Context, apiKey string) (*model.Shop, error)
	SetActive(ctx context.Context, id int64, active bool) error
	List(ctx context.Context) ([]model.Shop, error)
}

// ==================== 仓储实现 ====================

type shopRepo struct {
	db *gorm.DB
}

// NewShopRepository 创建店铺仓储
func NewShopRepository(db *gorm.DB) ShopRepository {
	return &shopRepo{db: db}
}

func (r *shopRepo) Create(ctx context.Context, shop *model.Shop) error {
	return r.db.WithContext(ctx).Omit("Orders", "Vouchers").Create(shop).Error
}

func (r *shopRepo) GetByID(ctx context.Context, id int64) (*model.Shop, error) {
	var shop model.Shop
	if err := r.db.WithContext(ctx).First(&shop, id).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *shopRepo) GetBySlug(ctx context.Context, slug string) (*model.Shop, error) {
	var shop model.Shop
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

// GetActiveByAPIKey 鉴权用：只返回启用中的店铺
func (r *shopRepo) GetActiveByAPIKey(ctx context.Context, apiKey string) (*model.Shop, error) {
	var shop model.Shop
	if err := r.db.WithContext(ctx).
		Where("api_key = ? AND active = ?", apiKey, true).
		First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

// SetActive 启用/停用（只改 active，凭证不可变）
func (r *shopRepo) SetActive(ctx context.Context, id int64, active bool) error {
	return r.db.WithContext(ctx).Model(&model.Shop{}).Where("id = ?", id).Update("active", active).Error
}

func (r *shopRepo) List(ctx context.Context) ([]model.Shop, error) {
	var shops []model.Shop
	err := r.db.WithContext(ctx).Order("id ASC").Find(&shops).Error
	return shops, err
}

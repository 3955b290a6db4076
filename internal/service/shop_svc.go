package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"riskhub_v1_202610/internal/model"
	"riskhub_v1_202610/internal/repository"
	"riskhub_v1_202610/pkg/logger"
	"riskhub_v1_202610/pkg/utils"
)

// ShopSecretBytes 签名密钥随机字节数
const ShopSecretBytes = 32

// ShopService 店铺开通与查询
type ShopService struct {
	ShopRepo repository.ShopRepository
	logger   *zap.Logger
}

// NewShopService 创建店铺服务
func NewShopService(shopRepo repository.ShopRepository, log *zap.Logger) *ShopService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShopService{ShopRepo: shopRepo, logger: log}
}

// CreateShop 开通店铺，生成一次性的 API Key 与签名密钥
// 返回的 Shop 带明文 Secret，只在此刻展示给运营
func (s *ShopService) CreateShop(ctx context.Context, name, slug string) (*model.Shop, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError(map[string]string{"name": "required"})
	}
	if slug == "" {
		slug = utils.Slugify(name)
	} else {
		slug = utils.Slugify(slug)
	}
	if slug == "" {
		return nil, NewValidationError(map[string]string{"slug": "required"})
	}

	if _, err := s.ShopRepo.GetBySlug(ctx, slug); err == nil {
		return nil, NewValidationError(map[string]string{"slug": "unique"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, WrapStorage("店铺查询失败", err)
	}

	secret, err := utils.GenerateSecret(ShopSecretBytes)
	if err != nil {
		return nil, err
	}
	shop := &model.Shop{
		Name:   name,
		Slug:   slug,
		APIKey: "rk_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Secret: secret,
		Active: true,
	}
	if err := s.ShopRepo.Create(ctx, shop); err != nil {
		return nil, WrapStorage("店铺创建失败", err)
	}

	s.logger.Info("店铺已开通",
		zap.Int64("shop_id", shop.ID),
		zap.String("slug", shop.Slug),
		zap.String("api_key", logger.Redact(shop.APIKey)),
	)
	return shop, nil
}

// GetActiveByAPIKey 按 API Key 查启用中的店铺（签名校验用）
func (s *ShopService) GetActiveByAPIKey(ctx context.Context, apiKey string) (*model.Shop, error) {
	shop, err := s.ShopRepo.GetActiveByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, WrapStorage("店铺不存在或已停用", err)
	}
	return shop, nil
}

// SetActive 启用/停用店铺
func (s *ShopService) SetActive(ctx context.Context, slug string, active bool) error {
	shop, err := s.ShopRepo.GetBySlug(ctx, slug)
	if err != nil {
		return WrapStorage("店铺不存在", err)
	}
	if err := s.ShopRepo.SetActive(ctx, shop.ID, active); err != nil {
		return WrapStorage("店铺状态更新失败", err)
	}
	s.logger.Info("店铺状态已更新", zap.Int64("shop_id", shop.ID), zap.Bool("active", active))
	return nil
}

// ListShops 店铺列表
func (s *ShopService) ListShops(ctx context.Context) ([]model.Shop, error) {
	shops, err := s.ShopRepo.List(ctx)
	if err != nil {
		return nil, WrapStorage("店铺列表查询失败", err)
	}
	return shops, nil
}

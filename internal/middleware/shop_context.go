package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"riskhub_v1_202610/internal/model"
)

// ContextKeyShop gin 上下文中已认证店铺的 key
const ContextKeyShop = "auth_shop"

type shopContextKey struct{}

// WithShop 注入已认证店铺到 context
func WithShop(ctx context.Context, shop *model.Shop) context.Context {
	return context.WithValue(ctx, shopContextKey{}, shop)
}

// ShopFromContext 从 context 获取已认证店铺
func ShopFromContext(ctx context.Context) *model.Shop {
	if shop, ok := ctx.Value(shopContextKey{}).(*model.Shop); ok {
		return shop
	}
	return nil
}

// GetShop 从 gin 上下文获取已认证店铺
func GetShop(c *gin.Context) *model.Shop {
	if v, exists := c.Get(ContextKeyShop); exists {
		if shop, ok := v.(*model.Shop); ok {
			return shop
		}
	}
	return ShopFromContext(c.Request.Context())
}

// GetShopID 未认证时返回 0
func GetShopID(c *gin.Context) int64 {
	if shop := GetShop(c); shop != nil {
		return shop.ID
	}
	return 0
}

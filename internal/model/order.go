package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ==================== 订单状态常量 ====================

// 来源系统的订单状态，仅做记录，不参与风险评分
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCanceled   = "canceled"
	OrderStatusRefunded   = "refunded"
	OrderStatusFailed     = "failed"
)

// 支付方式
const (
	PaymentMethodCOD  = "cod"
	PaymentMethodCard = "card"
)

// ==================== Order 订单 ====================

// Order 店铺的一笔订单
// (shop_id, external_order_id) 唯一，是订单 upsert 的幂等键
type Order struct {
	BaseModel
	ShopID          int64  `gorm:"not null;uniqueIndex:idx_order_shop_external" json:"shop_id"`
	ExternalOrderID string `gorm:"size:128;not null;uniqueIndex:idx_order_shop_external" json:"external_order_id"`

	// 客户（脱敏）
	CustomerID   *int64 `gorm:"index" json:"customer_id"`
	CustomerHash string `gorm:"size:64;index;not null" json:"customer_hash"`

	// 个人信息摘要，永不保存原文
	NameHash    string `gorm:"size:64" json:"name_hash,omitempty"`
	PhoneHash   string `gorm:"size:64;index" json:"phone_hash,omitempty"`
	AddressHash string `gorm:"size:64" json:"address_hash,omitempty"`

	// 收货地（非高敏感）
	ShippingCity     string `gorm:"size:128" json:"shipping_city,omitempty"`
	ShippingPostcode string `gorm:"size:32" json:"shipping_postcode,omitempty"`
	ShippingCountry  string `gorm:"size:8" json:"shipping_country,omitempty"`

	// 金额
	Amount   decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	Currency string          `gorm:"size:10;default:EUR" json:"currency"`

	Status         string `gorm:"size:32;index" json:"status"`
	PaymentMethod  string `gorm:"size:32" json:"payment_method,omitempty"`
	ShippingMethod string `gorm:"size:64" json:"shipping_method,omitempty"`
	ItemCount      int    `gorm:"default:0" json:"item_count"`

	OrderedAt   *time.Time `gorm:"index" json:"ordered_at"`
	CompletedAt *time.Time `json:"completed_at"`

	Metadata datatypes.JSONMap `json:"metadata,omitempty"`

	// 订单删除时运单保留，外键置空
	Vouchers []Voucher `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"vouchers,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// IsCOD 是否货到付款
func (o *Order) IsCOD() bool {
	return o.PaymentMethod == PaymentMethodCOD
}

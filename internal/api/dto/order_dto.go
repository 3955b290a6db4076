package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ================== Order DTO ==================

// OrderPayload 店铺推送的订单
// customer_* 字段是原始个人信息，只在入库前用于计算哈希，绝不落库
type OrderPayload struct {
	ExternalOrderID string `json:"external_order_id" validate:"required,max=128"`
	CustomerEmail   string `json:"customer_email" validate:"required,email"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	ShippingAddress string `json:"shipping_address"`

	ShippingCity     string `json:"shipping_city" validate:"max=128"`
	ShippingPostcode string `json:"shipping_postcode" validate:"max=32"`
	ShippingCountry  string `json:"shipping_country" validate:"omitempty,len=2"`

	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency" validate:"omitempty,len=3"`
	Status         string          `json:"status" validate:"omitempty,oneof=pending processing completed canceled refunded failed"`
	PaymentMethod  string          `json:"payment_method" validate:"max=32"`
	ShippingMethod string          `json:"shipping_method" validate:"max=64"`
	ItemCount      int             `json:"item_count" validate:"gte=0"`

	OrderedAt   *time.Time     `json:"ordered_at"`
	CompletedAt *time.Time     `json:"completed_at"`
	Metadata    map[string]any `json:"metadata"`
}

// OrderResp 订单查询响应（不含任何原始个人信息）
type OrderResp struct {
	ID               int64           `json:"id"`
	ExternalOrderID  string          `json:"external_order_id"`
	CustomerHash     string          `json:"customer_hash"`
	ShippingCity     string          `json:"shipping_city"`
	ShippingPostcode string          `json:"shipping_postcode"`
	ShippingCountry  string          `json:"shipping_country"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	PaymentMethod    string          `json:"payment_method"`
	ShippingMethod   string          `json:"shipping_method"`
	ItemCount        int             `json:"item_count"`
	OrderedAt        *time.Time      `json:"ordered_at"`
	CompletedAt      *time.Time      `json:"completed_at"`
	VoucherNumbers   []string        `json:"voucher_numbers"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IngestResp 写入成功响应
type IngestResp struct {
	Success      bool    `json:"success"`
	OrderID      int64   `json:"order_id,omitempty"`
	VoucherID    int64   `json:"voucher_id,omitempty"`
	CustomerHash *string `json:"customer_hash"`
}

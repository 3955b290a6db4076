package dto

import "time"

// ================== Voucher DTO ==================

// VoucherPayload 店铺或轮询任务推送的运单
type VoucherPayload struct {
	VoucherNumber   string `json:"voucher_number" validate:"required,max=64"`
	ExternalOrderID string `json:"external_order_id" validate:"max=128"`
	// CustomerHash 直接提供的客户哈希，仅在找不到关联订单时使用
	CustomerHash string `json:"customer_hash" validate:"omitempty,len=64,hexadecimal,lowercase"`

	Courier        string `json:"courier" validate:"max=32"`
	CourierService string `json:"courier_service" validate:"max=64"`
	TrackingURL    string `json:"tracking_url" validate:"omitempty,url,max=500"`
	Status         string `json:"status" validate:"omitempty,oneof=created shipped in_transit delivered returned failed"`

	ShippedAt   *time.Time `json:"shipped_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	ReturnedAt  *time.Time `json:"returned_at"`
	FailedAt    *time.Time `json:"failed_at"`

	Metadata map[string]any        `json:"metadata"`
	Events   []CourierEventPayload `json:"events" validate:"dive"`
}

// CourierEventPayload 一条物流轨迹
type CourierEventPayload struct {
	EventCode   string         `json:"event_code" validate:"required,max=64"`
	Description string         `json:"description" validate:"max=500"`
	Location    string         `json:"location" validate:"max=255"`
	EventTime   time.Time      `json:"event_time" validate:"required"`
	Raw         map[string]any `json:"raw,omitempty"`
}

// VoucherResp 运单查询响应
type VoucherResp struct {
	ID             int64              `json:"id"`
	VoucherNumber  string             `json:"voucher_number"`
	OrderID        *int64             `json:"order_id"`
	CustomerHash   *string            `json:"customer_hash"`
	Courier        string             `json:"courier"`
	CourierService string             `json:"courier_service"`
	TrackingURL    string             `json:"tracking_url"`
	Status         string             `json:"status"`
	ShippedAt      *time.Time         `json:"shipped_at"`
	DeliveredAt    *time.Time         `json:"delivered_at"`
	ReturnedAt     *time.Time         `json:"returned_at"`
	FailedAt       *time.Time         `json:"failed_at"`
	Events         []CourierEventResp `json:"events"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// CourierEventResp 轨迹响应
type CourierEventResp struct {
	EventCode   string    `json:"event_code"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	EventTime   time.Time `json:"event_time"`
}

// CustomerStatResp 跨店铺风险查询响应
type CustomerStatResp struct {
	CustomerHash      string     `json:"customer_hash"`
	TotalOrders       int        `json:"total_orders"`
	Returns           int        `json:"returns"`
	LateDeliveries    int        `json:"late_deliveries"`
	FirstOrderAt      *time.Time `json:"first_order_at"`
	LastOrderAt       *time.Time `json:"last_order_at"`
	DeliveryRiskScore int        `json:"delivery_risk_score"`
	RiskLevel         string     `json:"risk_level"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

// ==================== 运单状态 ====================

// VoucherStatus 运单状态
const (
	VoucherStatusCreated   = "created"
	VoucherStatusShipped   = "shipped"
	VoucherStatusInTransit = "in_transit"
	VoucherStatusDelivered = "delivered"
	VoucherStatusReturned  = "returned"
	VoucherStatusFailed    = "failed"
)

// VoucherStatuses 全部合法状态
var VoucherStatuses = []string{
	VoucherStatusCreated,
	VoucherStatusShipped,
	VoucherStatusInTransit,
	VoucherStatusDelivered,
	VoucherStatusReturned,
	VoucherStatusFailed,
}

// 物流商代码
const (
	CourierACS     = "acs"
	CourierElta    = "elta"
	CourierGeniki  = "geniki"
	CourierSpeedex = "speedex"
)

// ==================== Voucher 运单 ====================

// Voucher 一个物流运单
// (shop_id, voucher_number) 唯一，是运单 upsert 的幂等键
type Voucher struct {
	BaseModel
	ShopID        int64  `gorm:"not null;uniqueIndex:idx_voucher_shop_number" json:"shop_id"`
	VoucherNumber string `gorm:"size:64;not null;uniqueIndex:idx_voucher_shop_number" json:"voucher_number"`

	OrderID      *int64  `gorm:"index" json:"order_id"`
	CustomerID   *int64  `gorm:"index" json:"customer_id"`
	CustomerHash *string `gorm:"size:64;index" json:"customer_hash"`

	// 物流商
	Courier        string `gorm:"size:32;index" json:"courier,omitempty"`
	CourierService string `gorm:"size:64" json:"courier_service,omitempty"`
	TrackingURL    string `gorm:"size:500" json:"tracking_url,omitempty"`

	Status string `gorm:"size:32;index;default:created" json:"status"`

	ShippedAt   *time.Time `json:"shipped_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	ReturnedAt  *time.Time `json:"returned_at"`
	FailedAt    *time.Time `json:"failed_at"`

	Metadata datatypes.JSONMap `json:"metadata,omitempty"`

	// LastPolledAt 最近一次轮询时间，写入时不覆盖
	LastPolledAt *time.Time `gorm:"index" json:"last_polled_at,omitempty"`

	// 运单删除时级联删除轨迹
	Events []CourierEvent `gorm:"foreignKey:VoucherID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"events,omitempty"`
}

func (Voucher) TableName() string {
	return "vouchers"
}

// IsFinal 是否已进入终态，终态运单不再轮询
func (v *Voucher) IsFinal() bool {
	switch v.Status {
	case VoucherStatusDelivered, VoucherStatusReturned, VoucherStatusFailed:
		return true
	}
	return false
}

// DeliveryDuration 发货到签收的耗时，缺少任一时间返回 false
func (v *Voucher) DeliveryDuration() (time.Duration, bool) {
	if v.ShippedAt == nil || v.DeliveredAt == nil {
		return 0, false
	}
	return v.DeliveredAt.Sub(*v.ShippedAt), true
}

// IsLate 是否迟到：已签收，且发货到签收超过阈值
func (v *Voucher) IsLate(threshold time.Duration) bool {
	if v.Status != VoucherStatusDelivered {
		return false
	}
	d, ok := v.DeliveryDuration()
	return ok && d > threshold
}

// ==================== CourierEvent 物流轨迹 ====================

// CourierEvent 物流轨迹节点，只追加
// (voucher_id, event_code, event_time) 作为去重键，重复轮询不会产生重复节点
type CourierEvent struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	VoucherID   int64          `gorm:"not null;uniqueIndex:idx_courier_event_dedup" json:"voucher_id"`
	Courier     string         `gorm:"size:32" json:"courier"`
	EventCode   string         `gorm:"size:64;uniqueIndex:idx_courier_event_dedup" json:"event_code"`
	Description string         `gorm:"size:500" json:"description"`
	Location    string         `gorm:"size:255" json:"location"`
	EventTime   time.Time      `gorm:"not null;uniqueIndex:idx_courier_event_dedup" json:"event_time"`
	RawPayload  datatypes.JSON `json:"raw_payload,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (CourierEvent) TableName() string {
	return "courier_events"
}

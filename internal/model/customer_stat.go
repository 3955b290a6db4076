package model

import (
	"time"

	"gorm.io/datatypes"
)

// 风险等级
const (
	RiskLevelGreen  = "green"
	RiskLevelYellow = "yellow"
	RiskLevelRed    = "red"
)

// CustomerStat 客户聚合统计，每个客户一行
// 每次相关事件都全量重算，不做增量累加
type CustomerStat struct {
	BaseModel
	CustomerID   int64  `gorm:"not null;index" json:"customer_id"`
	CustomerHash string `gorm:"size:64;uniqueIndex;not null" json:"customer_hash"`

	TotalOrders    int `gorm:"default:0" json:"total_orders"`
	Returns        int `gorm:"default:0" json:"returns"`
	LateDeliveries int `gorm:"default:0" json:"late_deliveries"`

	FirstOrderAt *time.Time `json:"first_order_at"`
	LastOrderAt  *time.Time `json:"last_order_at"`

	// 仅由运单维度的退回/迟到计算得出
	DeliveryRiskScore int    `gorm:"default:0;index" json:"delivery_risk_score"`
	RiskLevel         string `gorm:"size:16;default:green" json:"risk_level"`

	Metadata datatypes.JSONMap `json:"metadata,omitempty"`
}

func (CustomerStat) TableName() string {
	return "customer_stats"
}

// Models 需要自动迁移的全部模型，按依赖顺序排列
func Models() []interface{} {
	return []interface{}{
		&Shop{},
		&Customer{},
		&Order{},
		&Voucher{},
		&CourierEvent{},
		&CustomerStat{},
	}
}

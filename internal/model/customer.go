package model

import (
	"time"

	"gorm.io/datatypes"
)

// Customer 脱敏后的客户身份
// CustomerHash 是唯一的跨店铺关联键，不保存任何原始个人信息
type Customer struct {
	BaseModel
	CustomerHash string            `gorm:"size:64;uniqueIndex;not null" json:"customer_hash"`
	FirstSeenAt  time.Time         `json:"first_seen_at"`
	LastSeenAt   time.Time         `gorm:"index" json:"last_seen_at"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`

	// 客户删除时订单/运单保留，外键置空
	Orders   []Order       `gorm:"foreignKey:CustomerID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	Vouchers []Voucher     `gorm:"foreignKey:CustomerID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	Stat     *CustomerStat `gorm:"foreignKey:CustomerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (Customer) TableName() string {
	return "customers"
}

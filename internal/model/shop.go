package model

// Shop 接入的店铺（租户）
// APIKey / Secret 在开通时一次性生成，之后不可修改
type Shop struct {
	BaseModel
	Name   string `gorm:"size:100;not null" json:"name"`
	Slug   string `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	APIKey string `gorm:"column:api_key;size:64;uniqueIndex;not null" json:"api_key"`
	Secret string `gorm:"size:128;not null" json:"-"` // 永不对外输出
	Active bool   `gorm:"default:true;index" json:"active"`

	// 店铺删除时级联删除订单与运单
	Orders   []Order   `gorm:"foreignKey:ShopID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Vouchers []Voucher `gorm:"foreignKey:ShopID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (Shop) TableName() string {
	return "shops"
}

package model

import (
	"time"
)

// BaseModel 公共字段
// 不使用软删除：店铺/运单的级联删除依赖物理删除
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

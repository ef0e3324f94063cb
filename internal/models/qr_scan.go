package models

import (
	"time"
)

// QRScan 扫码流水表。只追加，不更新、不删除。
// 同一兑换码可以累积多条记录（消费前后的所有尝试都算），无唯一约束。
type QRScan struct {
	ID            uint      `gorm:"primarykey" json:"id"`                         // 主键
	QRCodeID      uint      `gorm:"index;not null" json:"qr_code_id"`             // 兑换码ID
	CustomerID    string    `gorm:"type:varchar(64);index" json:"customer_id"`    // Shopify 客户ID（可空）
	CustomerEmail string    `gorm:"type:varchar(255)" json:"customer_email"`      // 客户邮箱（可空）
	IPAddress     string    `gorm:"type:varchar(64)" json:"ip_address"`           // 请求 IP
	UserAgent     string    `gorm:"type:text" json:"user_agent"`                  // User-Agent
	Extra         string    `gorm:"type:text" json:"extra,omitempty"`             // 附加信息
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                      // 扫码时间
}

// TableName 指定表名
func (QRScan) TableName() string {
	return "qr_scans"
}

package models

import (
	"time"
)

const (
	QRCodeStatusUnused = "unused"
	QRCodeStatusUsed   = "used"
)

// QRCode 实体兑换码表。
// 状态只允许单向流转 unused -> used；first_scanned_at 与 status=used 同一条
// UPDATE 写入，两者要么都在要么都不在。
type QRCode struct {
	ID               uint         `gorm:"primarykey" json:"id"`                                            // 主键
	Code             string       `gorm:"type:varchar(80);uniqueIndex;not null" json:"code"`               // 兑换码（印刷在 QR 图中）
	Status           string       `gorm:"type:varchar(24);index;not null;default:'unused'" json:"status"`  // 状态（unused/used）
	UsedVia          string       `gorm:"type:varchar(24)" json:"used_via,omitempty"`                      // 消费路径（generic/product）
	ShopifyProductID int64        `gorm:"index" json:"shopify_product_id,omitempty"`                       // 关联 Shopify 商品ID
	RedirectURL      string       `gorm:"type:text" json:"redirect_url,omitempty"`                         // 静态跳转地址（优先于商品跳转）
	BatchID          *uint        `gorm:"index" json:"batch_id,omitempty"`                                 // 批次ID
	FirstScannedAt   *time.Time   `gorm:"index" json:"first_scanned_at"`                                   // 首次扫码时间（仅 used 时非空）
	CreatedAt        time.Time    `gorm:"index" json:"created_at"`                                         // 创建时间
	UpdatedAt        time.Time    `gorm:"index" json:"updated_at"`                                         // 更新时间
	Batch            *QRCodeBatch `gorm:"foreignKey:BatchID" json:"batch,omitempty"`                       // 批次信息
}

// TableName 指定表名
func (QRCode) TableName() string {
	return "qr_codes"
}

// Used 判断兑换码是否已被消费
func (c *QRCode) Used() bool {
	return c != nil && c.Status == QRCodeStatusUsed
}

// QRCodeBatch 兑换码批次表
type QRCodeBatch struct {
	ID               uint      `gorm:"primarykey" json:"id"`                               // 主键
	BatchNo          string    `gorm:"type:varchar(40);uniqueIndex;not null" json:"batch_no"` // 批次号
	Quantity         int       `gorm:"not null" json:"quantity"`                           // 数量
	ShopifyProductID int64     `json:"shopify_product_id,omitempty"`                       // 批次关联商品ID
	RedirectURL      string    `gorm:"type:text" json:"redirect_url,omitempty"`            // 批次静态跳转地址
	Note             string    `gorm:"type:text" json:"note,omitempty"`                    // 备注
	CreatedBy        *uint     `gorm:"index" json:"created_by,omitempty"`                  // 创建人（管理员ID）
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt        time.Time `gorm:"index" json:"updated_at"`                            // 更新时间
}

// TableName 指定表名
func (QRCodeBatch) TableName() string {
	return "qr_code_batches"
}

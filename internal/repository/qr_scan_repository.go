package repository

import (
	"errors"
	"strings"

	"github.com/devs-store/unlock-api/internal/models"

	"gorm.io/gorm"
)

// QRScanListFilter 扫码流水筛选
type QRScanListFilter struct {
	QRCodeID   uint
	CustomerID string
	Page       int
	PageSize   int
}

// QRScanRepository 扫码流水仓储接口。接口上只有追加和读取，没有更新与删除。
type QRScanRepository interface {
	Append(scan *models.QRScan) error
	ListByCustomer(customerID string) ([]models.QRScan, error)
	List(filter QRScanListFilter) ([]models.QRScan, int64, error)
}

// GormQRScanRepository GORM 扫码流水仓储实现
type GormQRScanRepository struct {
	db *gorm.DB
}

// NewQRScanRepository 创建扫码流水仓储
func NewQRScanRepository(db *gorm.DB) *GormQRScanRepository {
	return &GormQRScanRepository{db: db}
}

// Append 追加一条扫码记录
func (r *GormQRScanRepository) Append(scan *models.QRScan) error {
	if scan == nil || scan.QRCodeID == 0 {
		return errors.New("invalid qr scan")
	}
	return r.db.Create(scan).Error
}

// ListByCustomer 查询某客户的全部扫码记录
func (r *GormQRScanRepository) ListByCustomer(customerID string) ([]models.QRScan, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return []models.QRScan{}, nil
	}
	var rows []models.QRScan
	if err := r.db.Where("customer_id = ?", customerID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// List 查询扫码流水列表
func (r *GormQRScanRepository) List(filter QRScanListFilter) ([]models.QRScan, int64, error) {
	query := r.db.Model(&models.QRScan{})
	if filter.QRCodeID > 0 {
		query = query.Where("qr_code_id = ?", filter.QRCodeID)
	}
	if customerID := strings.TrimSpace(filter.CustomerID); customerID != "" {
		query = query.Where("customer_id = ?", customerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Limit(filter.PageSize).Offset(offset)
	}

	var rows []models.QRScan
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

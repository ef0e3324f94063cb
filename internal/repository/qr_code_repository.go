package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/devs-store/unlock-api/internal/models"

	"gorm.io/gorm"
)

// QRCodeListFilter 兑换码列表筛选
type QRCodeListFilter struct {
	Code             string
	Status           string
	BatchNo          string
	ShopifyProductID int64
	Page             int
	PageSize         int
}

// QRCodeRepository 兑换码仓储接口。
// MarkUsed 是唯一的写路径：必须是一条带状态谓词的原子 UPDATE，
// 以受影响行数判定是否抢到首次消费——禁止先读状态再写（跨进程会产生竞态）。
type QRCodeRepository interface {
	CreateBatch(batch *models.QRCodeBatch, codes []models.QRCode) error
	GetByCode(code string) (*models.QRCode, error)
	GetByID(id uint) (*models.QRCode, error)
	List(filter QRCodeListFilter) ([]models.QRCode, int64, error)
	ListByIDs(ids []uint) ([]models.QRCode, error)
	MarkUsed(id uint, usedAt time.Time, via string) (bool, error)
}

// GormQRCodeRepository GORM 兑换码仓储实现
type GormQRCodeRepository struct {
	db *gorm.DB
}

// NewQRCodeRepository 创建兑换码仓储
func NewQRCodeRepository(db *gorm.DB) *GormQRCodeRepository {
	return &GormQRCodeRepository{db: db}
}

// CreateBatch 在同一事务内创建批次与兑换码
func (r *GormQRCodeRepository) CreateBatch(batch *models.QRCodeBatch, codes []models.QRCode) error {
	if batch == nil {
		return errors.New("invalid qr code batch")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(batch).Error; err != nil {
			return err
		}
		if len(codes) == 0 {
			return nil
		}
		for idx := range codes {
			codes[idx].BatchID = &batch.ID
		}
		return tx.Create(&codes).Error
	})
}

// GetByCode 根据兑换码查询，未注册返回 (nil, nil)
func (r *GormQRCodeRepository) GetByCode(code string) (*models.QRCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var row models.QRCode
	if err := r.db.Where("code = ?", code).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetByID 根据 ID 查询兑换码
func (r *GormQRCodeRepository) GetByID(id uint) (*models.QRCode, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.QRCode
	if err := r.db.Preload("Batch").First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// List 查询兑换码列表
func (r *GormQRCodeRepository) List(filter QRCodeListFilter) ([]models.QRCode, int64, error) {
	query := r.db.Model(&models.QRCode{}).Preload("Batch")
	if code := strings.TrimSpace(filter.Code); code != "" {
		query = query.Where("code LIKE ?", "%"+code+"%")
	}
	if status := strings.TrimSpace(strings.ToLower(filter.Status)); status != "" {
		query = query.Where("status = ?", status)
	}
	if batchNo := strings.TrimSpace(filter.BatchNo); batchNo != "" {
		query = query.Joins("LEFT JOIN qr_code_batches ON qr_code_batches.id = qr_codes.batch_id").
			Where("qr_code_batches.batch_no = ?", batchNo)
	}
	if filter.ShopifyProductID > 0 {
		query = query.Where("shopify_product_id = ?", filter.ShopifyProductID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Limit(filter.PageSize).Offset(offset)
	}

	var rows []models.QRCode
	if err := query.Order("qr_codes.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListByIDs 按 ID 列表查询兑换码
func (r *GormQRCodeRepository) ListByIDs(ids []uint) ([]models.QRCode, error) {
	if len(ids) == 0 {
		return []models.QRCode{}, nil
	}
	var rows []models.QRCode
	if err := r.db.Where("id IN ?", ids).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkUsed 条件置为已用：仅当当前状态仍为 unused 时生效，
// 返回值 applied 表示本次调用是否是唯一赢家。
func (r *GormQRCodeRepository) MarkUsed(id uint, usedAt time.Time, via string) (bool, error) {
	if id == 0 {
		return false, errors.New("invalid qr code id")
	}
	if usedAt.IsZero() {
		usedAt = time.Now()
	}
	result := r.db.Model(&models.QRCode{}).
		Where("id = ? AND status = ?", id, models.QRCodeStatusUnused).
		Updates(map[string]interface{}{
			"status":           models.QRCodeStatusUsed,
			"used_via":         strings.TrimSpace(via),
			"first_scanned_at": usedAt,
			"updated_at":       usedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

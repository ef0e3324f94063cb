package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/devs-store/unlock-api/internal/logger"
	"github.com/devs-store/unlock-api/internal/models"
	"github.com/devs-store/unlock-api/internal/repository"
)

var (
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrQuantityTooLarge = errors.New("quantity too large")
)

const maxBatchQuantity = 10000

// GenerateQRCodesInput 批量生成兑换码输入
type GenerateQRCodesInput struct {
	Quantity         int
	ShopifyProductID int64
	RedirectURL      string
	Note             string
	CreatedBy        *uint
}

// QRAdminService 管理端兑换码运营服务
type QRAdminService struct {
	codeRepo repository.QRCodeRepository
	scanRepo repository.QRScanRepository
}

// NewQRAdminService 创建管理端服务
func NewQRAdminService(codeRepo repository.QRCodeRepository, scanRepo repository.QRScanRepository) *QRAdminService {
	return &QRAdminService{codeRepo: codeRepo, scanRepo: scanRepo}
}

// GenerateQRCodes 批量生成兑换码并落库为一个批次
func (s *QRAdminService) GenerateQRCodes(input GenerateQRCodesInput) (*models.QRCodeBatch, []models.QRCode, error) {
	if input.Quantity <= 0 {
		return nil, nil, ErrInvalidQuantity
	}
	if input.Quantity > maxBatchQuantity {
		return nil, nil, ErrQuantityTooLarge
	}

	batch := &models.QRCodeBatch{
		BatchNo:          generateBatchNo(),
		Quantity:         input.Quantity,
		ShopifyProductID: input.ShopifyProductID,
		RedirectURL:      strings.TrimSpace(input.RedirectURL),
		Note:             strings.TrimSpace(input.Note),
		CreatedBy:        input.CreatedBy,
	}

	codes := make([]models.QRCode, 0, input.Quantity)
	for i := 0; i < input.Quantity; i++ {
		codes = append(codes, models.QRCode{
			Code:             generateQRCode(),
			Status:           models.QRCodeStatusUnused,
			ShopifyProductID: input.ShopifyProductID,
			RedirectURL:      strings.TrimSpace(input.RedirectURL),
		})
	}

	if err := s.codeRepo.CreateBatch(batch, codes); err != nil {
		logger.Errorw("qr_batch_create_failed", "batch_no", batch.BatchNo, "quantity", input.Quantity, "error", err)
		return nil, nil, err
	}

	logger.Infow("qr_batch_created",
		"batch_no", batch.BatchNo,
		"quantity", input.Quantity,
		"shopify_product_id", input.ShopifyProductID,
	)
	return batch, codes, nil
}

// ListQRCodes 查询兑换码列表
func (s *QRAdminService) ListQRCodes(filter repository.QRCodeListFilter) ([]models.QRCode, int64, error) {
	return s.codeRepo.List(filter)
}

// ListScans 查询扫码流水列表
func (s *QRAdminService) ListScans(filter repository.QRScanListFilter) ([]models.QRScan, int64, error) {
	return s.scanRepo.List(filter)
}

func generateBatchNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("QB%s%s", now, randNumeric(4))
}

// generateQRCode 生成兑换码：QR 前缀 + 20 位大写字母数字（去除易混淆字符）
func generateQRCode() string {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	var b strings.Builder
	b.WriteString("QR")
	for i := 0; i < 20; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			b.WriteByte(charset[0])
			continue
		}
		b.WriteByte(charset[n.Int64()])
	}
	return b.String()
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}

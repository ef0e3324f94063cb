package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/devs-store/unlock-api/internal/http/response"
	"github.com/devs-store/unlock-api/internal/repository"
	"github.com/devs-store/unlock-api/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateQRCodeBatchRequest 批量生成兑换码请求
type CreateQRCodeBatchRequest struct {
	Quantity         int    `json:"quantity" binding:"required"`
	ShopifyProductID int64  `json:"shopify_product_id"`
	RedirectURL      string `json:"redirect_url"`
	Note             string `json:"note"`
}

// CreateQRCodeBatch 批量生成兑换码 (Admin)
func (h *Handler) CreateQRCodeBatch(c *gin.Context) {
	var req CreateQRCodeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	var createdBy *uint
	if adminID, ok := getAdminID(c); ok {
		createdBy = &adminID
	}

	batch, codes, err := h.QRAdminService.GenerateQRCodes(service.GenerateQRCodesInput{
		Quantity:         req.Quantity,
		ShopifyProductID: req.ShopifyProductID,
		RedirectURL:      req.RedirectURL,
		Note:             req.Note,
		CreatedBy:        createdBy,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidQuantity):
			respondError(c, response.CodeBadRequest, "quantity must be positive", nil)
		case errors.Is(err, service.ErrQuantityTooLarge):
			respondError(c, response.CodeBadRequest, "quantity exceeds batch limit", nil)
		default:
			respondError(c, response.CodeInternal, "qr batch create failed", err)
		}
		return
	}

	requestLog(c).Infow("admin_qr_batch_created", "batch_no", batch.BatchNo, "quantity", batch.Quantity)
	response.Success(c, gin.H{
		"batch": batch,
		"codes": codes,
	})
}

// GetQRCodes 获取兑换码列表 (Admin)
func (h *Handler) GetQRCodes(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	productID, _ := strconv.ParseInt(c.Query("shopify_product_id"), 10, 64)

	filter := repository.QRCodeListFilter{
		Code:             strings.TrimSpace(c.Query("code")),
		Status:           strings.TrimSpace(c.Query("status")),
		BatchNo:          strings.TrimSpace(c.Query("batch_no")),
		ShopifyProductID: productID,
		Page:             page,
		PageSize:         pageSize,
	}

	codes, total, err := h.QRAdminService.ListQRCodes(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "qr code fetch failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, codes, pagination)
}

// GetQRScans 获取扫码流水列表 (Admin)
func (h *Handler) GetQRScans(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	qrCodeID, _ := strconv.ParseUint(c.Query("qr_code_id"), 10, 64)

	filter := repository.QRScanListFilter{
		QRCodeID:   uint(qrCodeID),
		CustomerID: strings.TrimSpace(c.Query("customer_id")),
		Page:       page,
		PageSize:   pageSize,
	}

	scans, total, err := h.QRAdminService.ListScans(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "qr scan fetch failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, scans, pagination)
}

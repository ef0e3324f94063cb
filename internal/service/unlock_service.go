package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/devs-store/unlock-api/internal/logger"
	"github.com/devs-store/unlock-api/internal/metrics"
	"github.com/devs-store/unlock-api/internal/shopify"
)

// UnlockService 负责在 Shopify 侧为客户开通商品访问权。
// 解锁是尽力而为的副作用：任何失败只记日志与指标，绝不向调用方传播，
// 也不影响兑换本身的结果。
type UnlockService struct {
	shopifyClient *shopify.Client
}

// NewUnlockService 创建解锁服务
func NewUnlockService(shopifyClient *shopify.Client) *UnlockService {
	return &UnlockService{shopifyClient: shopifyClient}
}

// TriggerUnlock 为客户创建零元订单以解锁商品。无返回值：失败被吞掉。
func (s *UnlockService) TriggerUnlock(ctx context.Context, customerID string, productID int64, code string) {
	if s == nil {
		return
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" || productID <= 0 {
		metrics.UnlockAttemptsTotal.WithLabelValues(metrics.UnlockResultSkipped).Inc()
		return
	}
	if s.shopifyClient == nil || !s.shopifyClient.Configured() {
		metrics.UnlockAttemptsTotal.WithLabelValues(metrics.UnlockResultSkipped).Inc()
		logger.Warnw("qr_unlock_skipped_shopify_unconfigured",
			"customer_id", customerID,
			"product_id", productID,
		)
		return
	}

	customerNumID, err := strconv.ParseInt(customerID, 10, 64)
	if err != nil || customerNumID <= 0 {
		metrics.UnlockAttemptsTotal.WithLabelValues(metrics.UnlockResultSkipped).Inc()
		logger.Warnw("qr_unlock_skipped_bad_customer_id",
			"customer_id", customerID,
			"product_id", productID,
		)
		return
	}

	product, err := s.shopifyClient.GetProduct(ctx, productID)
	if err != nil {
		metrics.UnlockAttemptsTotal.WithLabelValues(metrics.UnlockResultFailed).Inc()
		logger.Warnw("qr_unlock_product_fetch_failed",
			"customer_id", customerID,
			"product_id", productID,
			"error", err,
		)
		return
	}

	variant, ok := product.FirstVariant()
	if !ok {
		metrics.UnlockAttemptsTotal.WithLabelValues(metrics.UnlockResultFailed).Inc()
		logger.Warnw("qr_unlock_no_variant",
			"customer_id", customerID,
			"product_id", productID,
		)
		return
	}

	orderID, err := s.shopifyClient.CreateZeroCostOrder(ctx, shopify.ZeroCostOrderInput{
		CustomerID: customerNumID,
		VariantID:  variant.ID,
		Note:       fmt.Sprintf("QR unlock for code %s", code),
	})
	if err != nil {
		metrics.UnlockAttemptsTotal.WithLabelValues(metrics.UnlockResultFailed).Inc()
		logger.Warnw("qr_unlock_order_create_failed",
			"customer_id", customerID,
			"product_id", productID,
			"variant_id", variant.ID,
			"error", err,
		)
		return
	}

	metrics.UnlockAttemptsTotal.WithLabelValues(metrics.UnlockResultSuccess).Inc()
	logger.Infow("qr_unlock_order_created",
		"customer_id", customerID,
		"product_id", productID,
		"variant_id", variant.ID,
		"order_id", orderID,
	)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devs-store/unlock-api/internal/cache"
	"github.com/devs-store/unlock-api/internal/constants"
	"github.com/devs-store/unlock-api/internal/logger"
	"github.com/devs-store/unlock-api/internal/metrics"
	"github.com/devs-store/unlock-api/internal/models"
	"github.com/devs-store/unlock-api/internal/queue"
	"github.com/devs-store/unlock-api/internal/repository"
	"github.com/devs-store/unlock-api/internal/shopify"
)

var (
	ErrCodeRequired       = errors.New("qr code required")
	ErrCodeNotFound       = errors.New("qr code not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// RedeemInput 一次扫码请求携带的上下文
type RedeemInput struct {
	Code          string
	CustomerID    string
	CustomerEmail string
	IPAddress     string
	UserAgent     string
}

// RedeemResult 兑换结果
type RedeemResult struct {
	Outcome     string // redeemed / already_used
	Destination string // 302 跳转目标（仅 redeemed 时有值）
}

// RedeemServiceOptions 兑换引擎配置
type RedeemServiceOptions struct {
	AccountURL      string        // 通用落地页
	StoreURL        string        // 店铺地址，用于拼接商品链接
	LogUsedScans    bool          // 已用码的扫码尝试是否也入流水
	UnlockTimeout   time.Duration // 内联解锁调用超时
	ProductCacheTTL time.Duration // 商品元数据缓存时长
}

// RedeemService 兑换引擎：校验兑换码、原子消费、追加流水、触发解锁。
// 消费判定只依赖 MarkUsed 的原子谓词更新，引擎本身不做读-判-写。
type RedeemService struct {
	codeRepo    repository.QRCodeRepository
	scanRepo    repository.QRScanRepository
	catalog     *shopify.Client
	queueClient *queue.Client
	unlockSvc   *UnlockService
	opts        RedeemServiceOptions
}

// NewRedeemService 创建兑换引擎
func NewRedeemService(
	codeRepo repository.QRCodeRepository,
	scanRepo repository.QRScanRepository,
	catalog *shopify.Client,
	queueClient *queue.Client,
	unlockSvc *UnlockService,
	opts RedeemServiceOptions,
) *RedeemService {
	if opts.UnlockTimeout <= 0 {
		opts.UnlockTimeout = 15 * time.Second
	}
	if opts.ProductCacheTTL <= 0 {
		opts.ProductCacheTTL = 5 * time.Minute
	}
	return &RedeemService{
		codeRepo:    codeRepo,
		scanRepo:    scanRepo,
		catalog:     catalog,
		queueClient: queueClient,
		unlockSvc:   unlockSvc,
		opts:        opts,
	}
}

// Redeem 执行一次兑换。
// 流程：查码 -> 已用短路 -> 追加流水 -> 原子置用 -> 解析落地页 -> 触发解锁。
func (s *RedeemService) Redeem(ctx context.Context, input RedeemInput) (*RedeemResult, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		metrics.ScanRequestsTotal.WithLabelValues(metrics.ScanOutcomeInvalid).Inc()
		return nil, ErrCodeRequired
	}

	row, err := s.codeRepo.GetByCode(code)
	if err != nil {
		metrics.ScanRequestsTotal.WithLabelValues(metrics.ScanOutcomeStorageError).Inc()
		logger.Errorw("qr_redeem_lookup_failed", "code", code, "error", err)
		return nil, ErrStorageUnavailable
	}
	if row == nil {
		metrics.ScanRequestsTotal.WithLabelValues(metrics.ScanOutcomeNotFound).Inc()
		return nil, ErrCodeNotFound
	}

	if row.Used() {
		if s.opts.LogUsedScans {
			s.appendScan(row.ID, input)
		}
		metrics.ScanRequestsTotal.WithLabelValues(metrics.ScanOutcomeAlreadyUsed).Inc()
		logger.Infow("qr_redeem_already_used",
			"code", code,
			"qr_code_id", row.ID,
			"customer_id", input.CustomerID,
		)
		return &RedeemResult{Outcome: constants.RedeemOutcomeAlreadyUsed}, nil
	}

	// 流水先于状态翻转写入：即使后续 CAS 输掉，尝试本身也要留痕。
	s.appendScan(row.ID, input)

	via := constants.UsedViaGeneric
	if row.ShopifyProductID > 0 {
		via = constants.UsedViaProduct
	}
	applied, err := s.codeRepo.MarkUsed(row.ID, time.Now(), via)
	if err != nil {
		metrics.ScanRequestsTotal.WithLabelValues(metrics.ScanOutcomeStorageError).Inc()
		logger.Errorw("qr_redeem_mark_used_failed", "code", code, "qr_code_id", row.ID, "error", err)
		return nil, ErrStorageUnavailable
	}
	if !applied {
		// 另一个并发请求抢到了首次消费
		metrics.ScanRequestsTotal.WithLabelValues(metrics.ScanOutcomeAlreadyUsed).Inc()
		logger.Infow("qr_redeem_lost_race",
			"code", code,
			"qr_code_id", row.ID,
			"customer_id", input.CustomerID,
		)
		return &RedeemResult{Outcome: constants.RedeemOutcomeAlreadyUsed}, nil
	}

	destination := s.resolveDestination(ctx, row)

	if row.ShopifyProductID > 0 && strings.TrimSpace(input.CustomerID) != "" {
		s.dispatchUnlock(queue.QRUnlockPayload{
			CustomerID: strings.TrimSpace(input.CustomerID),
			ProductID:  row.ShopifyProductID,
			Code:       code,
		})
	}

	metrics.ScanRequestsTotal.WithLabelValues(metrics.ScanOutcomeRedeemed).Inc()
	logger.Infow("qr_redeem_succeeded",
		"code", code,
		"qr_code_id", row.ID,
		"customer_id", input.CustomerID,
		"via", via,
		"destination", destination,
	)
	return &RedeemResult{
		Outcome:     constants.RedeemOutcomeRedeemed,
		Destination: destination,
	}, nil
}

// appendScan 追加扫码流水。流水是尽力而为的审计记录，失败只记日志。
func (s *RedeemService) appendScan(qrCodeID uint, input RedeemInput) {
	scan := &models.QRScan{
		QRCodeID:      qrCodeID,
		CustomerID:    strings.TrimSpace(input.CustomerID),
		CustomerEmail: strings.TrimSpace(input.CustomerEmail),
		IPAddress:     input.IPAddress,
		UserAgent:     input.UserAgent,
	}
	if err := s.scanRepo.Append(scan); err != nil {
		logger.Errorw("qr_scan_append_failed",
			"qr_code_id", qrCodeID,
			"customer_id", input.CustomerID,
			"error", err,
		)
	}
}

// resolveDestination 解析 302 跳转目标。
// 优先级：码上的静态地址 > 关联商品的店铺链接 > 通用落地页。
func (s *RedeemService) resolveDestination(ctx context.Context, row *models.QRCode) string {
	if url := strings.TrimSpace(row.RedirectURL); url != "" {
		return url
	}
	if row.ShopifyProductID > 0 {
		if product := s.lookupProduct(ctx, row.ShopifyProductID); product != nil {
			if url := product.StoreURL(s.opts.StoreURL); url != "" {
				return url
			}
		}
	}
	return s.opts.AccountURL
}

// lookupProduct 读取商品元数据，优先命中缓存。失败返回 nil 降级到落地页。
func (s *RedeemService) lookupProduct(ctx context.Context, productID int64) *shopify.Product {
	cacheKey := fmt.Sprintf("%s:%d", constants.CacheKeyShopifyProduct, productID)
	var cached shopify.Product
	if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		return &cached
	}

	if s.catalog == nil || !s.catalog.Configured() {
		return nil
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		logger.Warnw("qr_redeem_product_lookup_failed", "product_id", productID, "error", err)
		return nil
	}
	if err := cache.SetJSON(ctx, cacheKey, product, s.opts.ProductCacheTTL); err != nil {
		logger.Warnw("qr_product_cache_write_failed", "product_id", productID, "error", err)
	}
	return product
}

// dispatchUnlock 触发解锁：队列可用则入队，否则退化为带超时的后台调用。
// 两条路径都与响应解耦——解锁永远不会拖慢或阻断 302。
func (s *RedeemService) dispatchUnlock(payload queue.QRUnlockPayload) {
	if s.queueClient.Enabled() {
		err := s.queueClient.EnqueueQRUnlock(payload)
		if err == nil {
			logger.Infow("qr_unlock_enqueued",
				"customer_id", payload.CustomerID,
				"product_id", payload.ProductID,
			)
			return
		}
		logger.Warnw("qr_unlock_enqueue_failed",
			"customer_id", payload.CustomerID,
			"product_id", payload.ProductID,
			"error", err,
		)
	}

	if s.unlockSvc == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.UnlockTimeout)
		defer cancel()
		s.unlockSvc.TriggerUnlock(ctx, payload.CustomerID, payload.ProductID, payload.Code)
	}()
}

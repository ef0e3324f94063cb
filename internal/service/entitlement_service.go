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
	"github.com/devs-store/unlock-api/internal/repository"
	"github.com/devs-store/unlock-api/internal/shopify"
)

var (
	ErrCustomerIDRequired   = errors.New("customer id required")
	ErrShopifyNotConfigured = errors.New("shopify not configured")
	ErrUpstreamUnavailable  = errors.New("shopify upstream unavailable")
	ErrEntitlementStorage   = errors.New("entitlement storage unavailable")
)

// ProductSummary 权益商品摘要（直接序列化给前端）
type ProductSummary struct {
	ID       int64  `json:"id"`
	Handle   string `json:"handle"`
	Title    string `json:"title"`
	Image    string `json:"image,omitempty"`
	StoreURL string `json:"online_store_url,omitempty"`
}

// EntitlementService 权益查询：扫码流水 -> 兑换码 -> 商品 -> Shopify 元数据
type EntitlementService struct {
	scanRepo repository.QRScanRepository
	codeRepo repository.QRCodeRepository
	catalog  *shopify.Client
	storeURL string
	cacheTTL time.Duration
}

// NewEntitlementService 创建权益查询服务
func NewEntitlementService(
	scanRepo repository.QRScanRepository,
	codeRepo repository.QRCodeRepository,
	catalog *shopify.Client,
	storeURL string,
	cacheTTL time.Duration,
) *EntitlementService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &EntitlementService{
		scanRepo: scanRepo,
		codeRepo: codeRepo,
		catalog:  catalog,
		storeURL: strings.TrimRight(strings.TrimSpace(storeURL), "/"),
		cacheTTL: cacheTTL,
	}
}

// ListEntitlements 返回某客户通过扫码解锁的商品列表。
// 链路上任何一环为空都返回空列表而不是错误。
func (s *EntitlementService) ListEntitlements(ctx context.Context, customerID string) ([]ProductSummary, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, ErrCustomerIDRequired
	}

	scans, err := s.scanRepo.ListByCustomer(customerID)
	if err != nil {
		metrics.EntitlementQueriesTotal.WithLabelValues(metrics.EntitlementResultStorage).Inc()
		logger.Errorw("entitlement_scans_query_failed", "customer_id", customerID, "error", err)
		return nil, ErrEntitlementStorage
	}
	if len(scans) == 0 {
		metrics.EntitlementQueriesTotal.WithLabelValues(metrics.EntitlementResultEmpty).Inc()
		return []ProductSummary{}, nil
	}

	codeIDs := make([]uint, 0, len(scans))
	seenCodes := make(map[uint]struct{}, len(scans))
	for _, scan := range scans {
		if _, ok := seenCodes[scan.QRCodeID]; ok {
			continue
		}
		seenCodes[scan.QRCodeID] = struct{}{}
		codeIDs = append(codeIDs, scan.QRCodeID)
	}

	codes, err := s.codeRepo.ListByIDs(codeIDs)
	if err != nil {
		metrics.EntitlementQueriesTotal.WithLabelValues(metrics.EntitlementResultStorage).Inc()
		logger.Errorw("entitlement_codes_query_failed", "customer_id", customerID, "error", err)
		return nil, ErrEntitlementStorage
	}

	productIDs := make([]int64, 0, len(codes))
	seenProducts := make(map[int64]struct{}, len(codes))
	for _, code := range codes {
		if code.ShopifyProductID <= 0 {
			continue
		}
		if _, ok := seenProducts[code.ShopifyProductID]; ok {
			continue
		}
		seenProducts[code.ShopifyProductID] = struct{}{}
		productIDs = append(productIDs, code.ShopifyProductID)
	}
	if len(productIDs) == 0 {
		metrics.EntitlementQueriesTotal.WithLabelValues(metrics.EntitlementResultEmpty).Inc()
		return []ProductSummary{}, nil
	}

	products, err := s.fetchProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]ProductSummary, 0, len(products))
	for idx := range products {
		product := &products[idx]
		summaries = append(summaries, ProductSummary{
			ID:       product.ID,
			Handle:   product.Handle,
			Title:    product.Title,
			Image:    product.ImageSrc(),
			StoreURL: product.StoreURL(s.storeURL),
		})
	}

	if len(summaries) == 0 {
		metrics.EntitlementQueriesTotal.WithLabelValues(metrics.EntitlementResultEmpty).Inc()
	} else {
		metrics.EntitlementQueriesTotal.WithLabelValues(metrics.EntitlementResultOK).Inc()
	}
	return summaries, nil
}

// fetchProducts 按 ID 列表取商品元数据：先走缓存，缺失的批量回源。
func (s *EntitlementService) fetchProducts(ctx context.Context, productIDs []int64) ([]shopify.Product, error) {
	if s.catalog == nil || !s.catalog.Configured() {
		metrics.EntitlementQueriesTotal.WithLabelValues(metrics.EntitlementResultUpstream).Inc()
		return nil, ErrShopifyNotConfigured
	}

	products := make([]shopify.Product, 0, len(productIDs))
	missing := make([]int64, 0, len(productIDs))
	for _, id := range productIDs {
		var cached shopify.Product
		hit, err := cache.GetJSON(ctx, productCacheKey(id), &cached)
		if err == nil && hit {
			products = append(products, cached)
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		fetched, err := s.catalog.GetProducts(ctx, missing)
		if err != nil {
			metrics.EntitlementQueriesTotal.WithLabelValues(metrics.EntitlementResultUpstream).Inc()
			logger.Errorw("entitlement_shopify_fetch_failed", "product_ids", missing, "error", err)
			return nil, ErrUpstreamUnavailable
		}
		for idx := range fetched {
			product := fetched[idx]
			if err := cache.SetJSON(ctx, productCacheKey(product.ID), product, s.cacheTTL); err != nil {
				logger.Warnw("qr_product_cache_write_failed", "product_id", product.ID, "error", err)
			}
			products = append(products, product)
		}
	}

	return products, nil
}

func productCacheKey(productID int64) string {
	return fmt.Sprintf("%s:%d", constants.CacheKeyShopifyProduct, productID)
}

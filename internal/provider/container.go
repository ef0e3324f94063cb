package provider

import (
	"time"

	"github.com/devs-store/unlock-api/internal/cache"
	"github.com/devs-store/unlock-api/internal/config"
	"github.com/devs-store/unlock-api/internal/logger"
	"github.com/devs-store/unlock-api/internal/models"
	"github.com/devs-store/unlock-api/internal/queue"
	"github.com/devs-store/unlock-api/internal/repository"
	"github.com/devs-store/unlock-api/internal/service"
	"github.com/devs-store/unlock-api/internal/shopify"
)

// Container 依赖注入容器
type Container struct {
	Config        *config.Config
	QueueClient   *queue.Client
	ShopifyClient *shopify.Client

	// Repositories
	AdminRepo  repository.AdminRepository
	QRCodeRepo repository.QRCodeRepository
	QRScanRepo repository.QRScanRepository

	// Services
	AuthService        *service.AuthService
	RedeemService      *service.RedeemService
	UnlockService      *service.UnlockService
	EntitlementService *service.EntitlementService
	QRAdminService     *service.QRAdminService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.QRCodeRepo = repository.NewQRCodeRepository(db)
	c.QRScanRepo = repository.NewQRScanRepository(db)
}

func (c *Container) initServices() {
	c.ShopifyClient = shopify.NewClient(shopify.Config{
		Domain:      c.Config.Shopify.Domain,
		AccessToken: c.Config.Shopify.AccessToken,
		APIVersion:  c.Config.Shopify.APIVersion,
		StoreURL:    c.Config.Shopify.StoreURL,
	})
	if !c.ShopifyClient.Configured() {
		logger.Warnw("provider_shopify_not_configured", "unlock", "skipped", "entitlements", "unavailable")
	}

	cacheTTL := time.Duration(c.Config.Redeem.ProductCacheTTLSeconds) * time.Second
	unlockTimeout := time.Duration(c.Config.Redeem.UnlockTimeoutSeconds) * time.Second

	c.AuthService = service.NewAuthService(c.AdminRepo, c.Config.JWT)
	c.UnlockService = service.NewUnlockService(c.ShopifyClient)
	c.RedeemService = service.NewRedeemService(
		c.QRCodeRepo,
		c.QRScanRepo,
		c.ShopifyClient,
		c.QueueClient,
		c.UnlockService,
		service.RedeemServiceOptions{
			AccountURL:      c.Config.Redeem.AccountURL,
			StoreURL:        c.Config.Shopify.StoreURL,
			LogUsedScans:    c.Config.Redeem.LogUsedScans,
			UnlockTimeout:   unlockTimeout,
			ProductCacheTTL: cacheTTL,
		},
	)
	c.EntitlementService = service.NewEntitlementService(
		c.QRScanRepo,
		c.QRCodeRepo,
		c.ShopifyClient,
		c.Config.Shopify.StoreURL,
		cacheTTL,
	)
	c.QRAdminService = service.NewQRAdminService(c.QRCodeRepo, c.QRScanRepo)
}

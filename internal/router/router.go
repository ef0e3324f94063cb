package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/devs-store/unlock-api/internal/cache"
	"github.com/devs-store/unlock-api/internal/config"
	adminhandlers "github.com/devs-store/unlock-api/internal/http/handlers/admin"
	publichandlers "github.com/devs-store/unlock-api/internal/http/handlers/public"
	"github.com/devs-store/unlock-api/internal/logger"
	"github.com/devs-store/unlock-api/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "unlock"
	}
	redisClient := cache.Client()
	scanRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:scan", redisPrefix),
		WindowSeconds: cfg.Security.ScanRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.ScanRateLimit.MaxRequests,
		Message:       "Too many scan attempts, please retry later.",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// 扫码兑换入口（QR 图中的 URL 直达这里）
	r.GET("/qr", RateLimitMiddleware(redisClient, scanRule, KeyByIP), publicHandler.RedeemQR)

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		apiV1.GET("/unlocks", publicHandler.ListUnlocks)

		// 管理端接口
		admin := apiV1.Group("/admin")
		{
			admin.POST("/login", adminHandler.AdminLogin)

			authorized := admin.Group("")
			authorized.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				authorized.POST("/qr-codes/batches", adminHandler.CreateQRCodeBatch)
				authorized.GET("/qr-codes", adminHandler.GetQRCodes)
				authorized.GET("/qr-scans", adminHandler.GetQRScans)
			}
		}
	}

	// 健康检查与指标
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

package main

import (
	"flag"

	"github.com/devs-store/unlock-api/internal/config"
	"github.com/devs-store/unlock-api/internal/logger"
	"github.com/devs-store/unlock-api/internal/models"
	"github.com/devs-store/unlock-api/internal/repository"
	"github.com/devs-store/unlock-api/internal/service"
)

func main() {
	var quantity int
	var productID int64
	var redirectURL string
	var note string
	flag.IntVar(&quantity, "quantity", 10, "生成兑换码数量")
	flag.Int64Var(&productID, "product-id", 0, "关联的 Shopify 商品ID（可选）")
	flag.StringVar(&redirectURL, "redirect-url", "", "静态跳转地址（可选，优先于商品跳转）")
	flag.StringVar(&note, "note", "seed batch", "批次备注")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	codeRepo := repository.NewQRCodeRepository(models.DB)
	scanRepo := repository.NewQRScanRepository(models.DB)
	adminSvc := service.NewQRAdminService(codeRepo, scanRepo)

	batch, codes, err := adminSvc.GenerateQRCodes(service.GenerateQRCodesInput{
		Quantity:         quantity,
		ShopifyProductID: productID,
		RedirectURL:      redirectURL,
		Note:             note,
	})
	if err != nil {
		stdLog.Fatalf("Failed to generate qr codes: %v", err)
	}

	stdLog.Printf("Created batch %s with %d codes", batch.BatchNo, batch.Quantity)
	for _, code := range codes {
		stdLog.Printf("  %s", code.Code)
	}
}

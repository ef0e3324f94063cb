package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/devs-store/unlock-api/internal/config"
	"github.com/devs-store/unlock-api/internal/constants"
	"github.com/devs-store/unlock-api/internal/models"
	"github.com/devs-store/unlock-api/internal/queue"
	"github.com/devs-store/unlock-api/internal/repository"
	"github.com/devs-store/unlock-api/internal/shopify"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testAccountURL = "https://www.devs-store.it/pages/account"

func setupRedeemServiceTest(t *testing.T, opts RedeemServiceOptions) (*RedeemService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:redeem_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.QRCodeBatch{}, &models.QRCode{}, &models.QRScan{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	if opts.AccountURL == "" {
		opts.AccountURL = testAccountURL
	}
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}

	codeRepo := repository.NewQRCodeRepository(db)
	scanRepo := repository.NewQRScanRepository(db)
	catalog := shopify.NewClient(shopify.Config{})
	svc := NewRedeemService(codeRepo, scanRepo, catalog, queueClient, NewUnlockService(catalog), opts)
	return svc, db
}

func countScans(t *testing.T, db *gorm.DB, qrCodeID uint) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.QRScan{}).Where("qr_code_id = ?", qrCodeID).Count(&count).Error; err != nil {
		t.Fatalf("count scans failed: %v", err)
	}
	return count
}

func TestRedeemRejectsMissingCode(t *testing.T) {
	svc, _ := setupRedeemServiceTest(t, RedeemServiceOptions{})

	for _, code := range []string{"", "   "} {
		_, err := svc.Redeem(context.Background(), RedeemInput{Code: code})
		if !errors.Is(err, ErrCodeRequired) {
			t.Fatalf("expected ErrCodeRequired for %q, got %v", code, err)
		}
	}
}

func TestRedeemRejectsUnknownCode(t *testing.T) {
	svc, _ := setupRedeemServiceTest(t, RedeemServiceOptions{})

	_, err := svc.Redeem(context.Background(), RedeemInput{Code: "NOPE"})
	if !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestRedeemFirstScanWinsAndLogsScan(t *testing.T) {
	svc, db := setupRedeemServiceTest(t, RedeemServiceOptions{})

	code := models.QRCode{Code: "ABC123", Status: models.QRCodeStatusUnused}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	result, err := svc.Redeem(context.Background(), RedeemInput{
		Code:          "ABC123",
		CustomerID:    "7001",
		CustomerEmail: "buyer@example.com",
		IPAddress:     "203.0.113.9",
		UserAgent:     "test-agent",
	})
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if result.Outcome != constants.RedeemOutcomeRedeemed {
		t.Fatalf("expected redeemed outcome, got %s", result.Outcome)
	}
	if result.Destination != testAccountURL {
		t.Fatalf("expected account url destination, got %s", result.Destination)
	}

	var row models.QRCode
	if err := db.First(&row, code.ID).Error; err != nil {
		t.Fatalf("reload code failed: %v", err)
	}
	if row.Status != models.QRCodeStatusUsed {
		t.Fatalf("expected code marked used, got %s", row.Status)
	}
	if row.FirstScannedAt == nil {
		t.Fatalf("expected first_scanned_at set")
	}
	if row.UsedVia != constants.UsedViaGeneric {
		t.Fatalf("expected used_via generic, got %s", row.UsedVia)
	}

	if got := countScans(t, db, code.ID); got != 1 {
		t.Fatalf("expected 1 scan logged, got %d", got)
	}

	var scan models.QRScan
	if err := db.Where("qr_code_id = ?", code.ID).First(&scan).Error; err != nil {
		t.Fatalf("load scan failed: %v", err)
	}
	if scan.CustomerID != "7001" || scan.CustomerEmail != "buyer@example.com" {
		t.Fatalf("unexpected scan customer fields: %+v", scan)
	}
	if scan.IPAddress != "203.0.113.9" || scan.UserAgent != "test-agent" {
		t.Fatalf("unexpected scan request fields: %+v", scan)
	}
}

func TestRedeemSecondScanBlockedWithoutNewScanRow(t *testing.T) {
	svc, db := setupRedeemServiceTest(t, RedeemServiceOptions{})

	code := models.QRCode{Code: "ONCE01", Status: models.QRCodeStatusUnused}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	if _, err := svc.Redeem(context.Background(), RedeemInput{Code: "ONCE01"}); err != nil {
		t.Fatalf("first redeem failed: %v", err)
	}

	result, err := svc.Redeem(context.Background(), RedeemInput{Code: "ONCE01", CustomerID: "7002"})
	if err != nil {
		t.Fatalf("second redeem failed: %v", err)
	}
	if result.Outcome != constants.RedeemOutcomeAlreadyUsed {
		t.Fatalf("expected already_used outcome, got %s", result.Outcome)
	}
	if result.Destination != "" {
		t.Fatalf("expected empty destination for blocked scan, got %s", result.Destination)
	}

	// log_used_scans 默认关闭，被拦截的扫码不进流水
	if got := countScans(t, db, code.ID); got != 1 {
		t.Fatalf("expected 1 scan after blocked rescan, got %d", got)
	}
}

func TestRedeemLogUsedScansRecordsBlockedAttempts(t *testing.T) {
	svc, db := setupRedeemServiceTest(t, RedeemServiceOptions{LogUsedScans: true})

	code := models.QRCode{Code: "AUDIT1", Status: models.QRCodeStatusUnused}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	if _, err := svc.Redeem(context.Background(), RedeemInput{Code: "AUDIT1"}); err != nil {
		t.Fatalf("first redeem failed: %v", err)
	}
	if _, err := svc.Redeem(context.Background(), RedeemInput{Code: "AUDIT1"}); err != nil {
		t.Fatalf("second redeem failed: %v", err)
	}

	if got := countScans(t, db, code.ID); got != 2 {
		t.Fatalf("expected blocked attempt to be logged, got %d scans", got)
	}
}

func TestRedeemPrefersStaticRedirectURL(t *testing.T) {
	svc, db := setupRedeemServiceTest(t, RedeemServiceOptions{})

	code := models.QRCode{
		Code:        "REDIR1",
		Status:      models.QRCodeStatusUnused,
		RedirectURL: "https://www.devs-store.it/pages/vip",
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	result, err := svc.Redeem(context.Background(), RedeemInput{Code: "REDIR1"})
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if result.Destination != "https://www.devs-store.it/pages/vip" {
		t.Fatalf("expected static redirect url, got %s", result.Destination)
	}
}

func TestRedeemResolvesProductDestinationFromCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"product": map[string]interface{}{
				"id":     42,
				"handle": "led-mask",
				"title":  "LED Mask",
			},
		})
	}))
	defer server.Close()

	svc, db := setupRedeemServiceTest(t, RedeemServiceOptions{StoreURL: "https://www.devs-store.it"})
	svc.catalog = shopify.NewClient(shopify.Config{
		AccessToken: "tok",
		BaseURL:     server.URL,
		StoreURL:    "https://www.devs-store.it",
	})

	code := models.QRCode{Code: "PROD01", Status: models.QRCodeStatusUnused, ShopifyProductID: 42}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	result, err := svc.Redeem(context.Background(), RedeemInput{Code: "PROD01"})
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if result.Destination != "https://www.devs-store.it/products/led-mask" {
		t.Fatalf("expected product destination, got %s", result.Destination)
	}

	var row models.QRCode
	if err := db.First(&row, code.ID).Error; err != nil {
		t.Fatalf("reload code failed: %v", err)
	}
	if row.UsedVia != constants.UsedViaProduct {
		t.Fatalf("expected used_via product, got %s", row.UsedVia)
	}
}

func TestRedeemSucceedsWhenUnlockUpstreamFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc, db := setupRedeemServiceTest(t, RedeemServiceOptions{UnlockTimeout: time.Second})
	broken := shopify.NewClient(shopify.Config{AccessToken: "tok", BaseURL: server.URL})
	svc.catalog = broken
	svc.unlockSvc = NewUnlockService(broken)

	code := models.QRCode{Code: "FAIL01", Status: models.QRCodeStatusUnused, ShopifyProductID: 42}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	result, err := svc.Redeem(context.Background(), RedeemInput{Code: "FAIL01", CustomerID: "7001"})
	if err != nil {
		t.Fatalf("redeem should not propagate unlock failure: %v", err)
	}
	if result.Outcome != constants.RedeemOutcomeRedeemed {
		t.Fatalf("expected redeemed outcome despite unlock failure, got %s", result.Outcome)
	}
	// 商品详情取不到时退化到通用落地页
	if result.Destination != testAccountURL {
		t.Fatalf("expected account url fallback, got %s", result.Destination)
	}
}

// stubCodeRepo 以互斥锁模拟原子谓词更新，用于确定性的并发测试。
type stubCodeRepo struct {
	mu   sync.Mutex
	code models.QRCode
}

func (s *stubCodeRepo) CreateBatch(batch *models.QRCodeBatch, codes []models.QRCode) error {
	return errors.New("not implemented")
}

func (s *stubCodeRepo) GetByCode(code string) (*models.QRCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code != s.code.Code {
		return nil, nil
	}
	copied := s.code
	return &copied, nil
}

func (s *stubCodeRepo) GetByID(id uint) (*models.QRCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.code.ID {
		return nil, nil
	}
	copied := s.code
	return &copied, nil
}

func (s *stubCodeRepo) List(filter repository.QRCodeListFilter) ([]models.QRCode, int64, error) {
	return nil, 0, errors.New("not implemented")
}

func (s *stubCodeRepo) ListByIDs(ids []uint) ([]models.QRCode, error) {
	return nil, errors.New("not implemented")
}

func (s *stubCodeRepo) MarkUsed(id uint, usedAt time.Time, via string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.code.ID || s.code.Status != models.QRCodeStatusUnused {
		return false, nil
	}
	s.code.Status = models.QRCodeStatusUsed
	s.code.UsedVia = via
	s.code.FirstScannedAt = &usedAt
	return true, nil
}

type stubScanRepo struct {
	mu    sync.Mutex
	scans []models.QRScan
}

func (s *stubScanRepo) Append(scan *models.QRScan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans = append(s.scans, *scan)
	return nil
}

func (s *stubScanRepo) ListByCustomer(customerID string) ([]models.QRScan, error) {
	return nil, errors.New("not implemented")
}

func (s *stubScanRepo) List(filter repository.QRScanListFilter) ([]models.QRScan, int64, error) {
	return nil, 0, errors.New("not implemented")
}

func TestRedeemConcurrentScansSingleWinner(t *testing.T) {
	codeRepo := &stubCodeRepo{code: models.QRCode{ID: 1, Code: "RACE01", Status: models.QRCodeStatusUnused}}
	scanRepo := &stubScanRepo{}
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	catalog := shopify.NewClient(shopify.Config{})
	svc := NewRedeemService(codeRepo, scanRepo, catalog, queueClient, NewUnlockService(catalog), RedeemServiceOptions{
		AccountURL: testAccountURL,
	})

	const attempts = 16
	results := make([]*RedeemResult, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = svc.Redeem(context.Background(), RedeemInput{
				Code:       "RACE01",
				CustomerID: fmt.Sprintf("70%02d", idx),
			})
		}(i)
	}
	wg.Wait()

	redeemed := 0
	blocked := 0
	for i := 0; i < attempts; i++ {
		if errs[i] != nil {
			t.Fatalf("attempt %d failed: %v", i, errs[i])
		}
		switch results[i].Outcome {
		case constants.RedeemOutcomeRedeemed:
			redeemed++
		case constants.RedeemOutcomeAlreadyUsed:
			blocked++
		default:
			t.Fatalf("unexpected outcome %q", results[i].Outcome)
		}
	}
	if redeemed != 1 {
		t.Fatalf("expected exactly one winner, got %d", redeemed)
	}
	if blocked != attempts-1 {
		t.Fatalf("expected %d blocked attempts, got %d", attempts-1, blocked)
	}

	row, err := codeRepo.GetByID(1)
	if err != nil {
		t.Fatalf("get by id failed: %v", err)
	}
	if !row.Used() {
		t.Fatalf("expected code used after race")
	}
	if len(scanRepo.scans) < 1 {
		t.Fatalf("expected at least the winning scan to be logged")
	}
}

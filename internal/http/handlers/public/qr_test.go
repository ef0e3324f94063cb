package public

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/devs-store/unlock-api/internal/config"
	"github.com/devs-store/unlock-api/internal/models"
	"github.com/devs-store/unlock-api/internal/provider"
	"github.com/devs-store/unlock-api/internal/queue"
	"github.com/devs-store/unlock-api/internal/repository"
	"github.com/devs-store/unlock-api/internal/service"
	"github.com/devs-store/unlock-api/internal/shopify"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testAccountURL = "https://www.devs-store.it/pages/account"

func setupPublicHandlerTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:public_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.QRCodeBatch{}, &models.QRCode{}, &models.QRScan{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Redeem.AccountURL = testAccountURL
	cfg.Shopify.StoreURL = "https://www.devs-store.it"

	codeRepo := repository.NewQRCodeRepository(db)
	scanRepo := repository.NewQRScanRepository(db)
	catalog := shopify.NewClient(shopify.Config{})
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}

	container := &provider.Container{
		Config:      cfg,
		QueueClient: queueClient,
		QRCodeRepo:  codeRepo,
		QRScanRepo:  scanRepo,
		RedeemService: service.NewRedeemService(codeRepo, scanRepo, catalog, queueClient,
			service.NewUnlockService(catalog), service.RedeemServiceOptions{
				AccountURL: testAccountURL,
				StoreURL:   "https://www.devs-store.it",
			}),
		EntitlementService: service.NewEntitlementService(scanRepo, codeRepo, catalog,
			"https://www.devs-store.it", time.Minute),
	}

	handler := New(container)
	r := gin.New()
	r.GET("/qr", handler.RedeemQR)
	r.GET("/api/v1/unlocks", handler.ListUnlocks)
	return r, db
}

func performRequest(r *gin.Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("User-Agent", "contract-test-agent")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRedeemQRMissingCode(t *testing.T) {
	r, _ := setupPublicHandlerTest(t)

	for _, target := range []string{"/qr", "/qr?code=", "/qr?code=%20%20"} {
		w := performRequest(r, target)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, w.Code)
		}
		if w.Body.String() != "Missing QR code" {
			t.Fatalf("%s: unexpected body %q", target, w.Body.String())
		}
	}
}

func TestRedeemQRUnknownCode(t *testing.T) {
	r, _ := setupPublicHandlerTest(t)

	w := performRequest(r, "/qr?code=NOPE")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w.Body.String() != "QR non valido o non registrato." {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestRedeemQRFirstScanRedirects(t *testing.T) {
	r, db := setupPublicHandlerTest(t)

	code := models.QRCode{Code: "ABC123", Status: models.QRCodeStatusUnused}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	w := performRequest(r, "/qr?code=ABC123&customerId=7001&customerEmail=buyer%40example.com")
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != testAccountURL {
		t.Fatalf("expected redirect to account url, got %q", got)
	}

	var scan models.QRScan
	if err := db.Where("qr_code_id = ?", code.ID).First(&scan).Error; err != nil {
		t.Fatalf("expected scan logged: %v", err)
	}
	if scan.CustomerID != "7001" || scan.UserAgent != "contract-test-agent" {
		t.Fatalf("unexpected scan row: %+v", scan)
	}
}

func TestRedeemQRSecondScanReturnsBlockedPage(t *testing.T) {
	r, db := setupPublicHandlerTest(t)

	code := models.QRCode{Code: "ONCE01", Status: models.QRCodeStatusUnused}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	if w := performRequest(r, "/qr?code=ONCE01"); w.Code != http.StatusFound {
		t.Fatalf("first scan: expected 302, got %d", w.Code)
	}

	w := performRequest(r, "/qr?code=ONCE01")
	if w.Code != http.StatusGone {
		t.Fatalf("second scan: expected 410, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html content type, got %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "QR già utilizzato") {
		t.Fatalf("expected blocked page title in body")
	}
	if !strings.Contains(body, testAccountURL) {
		t.Fatalf("expected account url link in blocked page")
	}
}

func TestListUnlocksMissingCustomerID(t *testing.T) {
	r, _ := setupPublicHandlerTest(t)

	w := performRequest(r, "/api/v1/unlocks")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if payload["error"] != "Missing customerId" {
		t.Fatalf("unexpected error payload: %v", payload)
	}
}

func TestListUnlocksEmptyArray(t *testing.T) {
	r, _ := setupPublicHandlerTest(t)

	w := performRequest(r, "/api/v1/unlocks?customerId=7001")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Fatalf("expected bare empty array, got %q", got)
	}
}

func TestListUnlocksShopifyNotConfigured(t *testing.T) {
	r, db := setupPublicHandlerTest(t)

	code := models.QRCode{Code: "PROD01", Status: models.QRCodeStatusUsed, ShopifyProductID: 42}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}
	if err := db.Create(&models.QRScan{QRCodeID: code.ID, CustomerID: "7001"}).Error; err != nil {
		t.Fatalf("create scan failed: %v", err)
	}

	w := performRequest(r, "/api/v1/unlocks?customerId=7001")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if payload["error"] != "Shopify not configured" {
		t.Fatalf("unexpected error payload: %v", payload)
	}
}

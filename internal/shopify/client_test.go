package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(Config{
		AccessToken: "shpat_test_token",
		APIVersion:  "2024-07",
		StoreURL:    "https://www.devs-store.it",
		BaseURL:     server.URL,
	})
	return client, server
}

func TestClientConfigured(t *testing.T) {
	if NewClient(Config{}).Configured() {
		t.Fatalf("expected empty config to be unconfigured")
	}
	if NewClient(Config{Domain: "shop.myshopify.com"}).Configured() {
		t.Fatalf("expected config without token to be unconfigured")
	}
	if !NewClient(Config{Domain: "shop.myshopify.com", AccessToken: "tok"}).Configured() {
		t.Fatalf("expected domain+token config to be configured")
	}
}

func TestGetProductSendsTokenAndParsesPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Shopify-Access-Token"); got != "shpat_test_token" {
			t.Errorf("expected access token header, got %q", got)
		}
		if r.URL.Path != "/admin/api/2024-07/products/42.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"product": map[string]interface{}{
				"id":     42,
				"handle": "led-mask",
				"title":  "LED Mask",
				"image":  map[string]interface{}{"src": "https://cdn.example/led.jpg"},
				"variants": []map[string]interface{}{
					{"id": 9001, "title": "Default", "price": "0.00"},
				},
			},
		})
	})

	product, err := client.GetProduct(context.Background(), 42)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.ID != 42 || product.Handle != "led-mask" {
		t.Fatalf("unexpected product: %+v", product)
	}
	if product.ImageSrc() != "https://cdn.example/led.jpg" {
		t.Fatalf("unexpected image src: %s", product.ImageSrc())
	}
	variant, ok := product.FirstVariant()
	if !ok || variant.ID != 9001 {
		t.Fatalf("unexpected variant: %+v ok=%v", variant, ok)
	}
	if got := product.StoreURL("https://www.devs-store.it"); got != "https://www.devs-store.it/products/led-mask" {
		t.Fatalf("unexpected store url: %s", got)
	}
}

func TestGetProductNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetProduct(context.Background(), 404)
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestGetProductsBatchesIDs(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "1,2" {
			t.Errorf("expected ids=1,2 got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"products": []map[string]interface{}{
				{"id": 1, "handle": "a", "title": "A"},
				{"id": 2, "handle": "b", "title": "B"},
			},
		})
	})

	products, err := client.GetProducts(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("get products failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
}

func TestGetProductsEmptyInput(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("expected no request for empty input")
	})

	products, err := client.GetProducts(context.Background(), nil)
	if err != nil {
		t.Fatalf("get products failed: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("expected empty result")
	}
}

func TestCreateZeroCostOrder(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/admin/api/2024-07/orders.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload struct {
			Order struct {
				Customer struct {
					ID int64 `json:"id"`
				} `json:"customer"`
				LineItems []struct {
					VariantID int64  `json:"variant_id"`
					Quantity  int    `json:"quantity"`
					Price     string `json:"price"`
				} `json:"line_items"`
				FinancialStatus string `json:"financial_status"`
				SendReceipt     bool   `json:"send_receipt"`
			} `json:"order"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode order payload failed: %v", err)
		}
		if payload.Order.Customer.ID != 7001 {
			t.Errorf("unexpected customer id %d", payload.Order.Customer.ID)
		}
		if len(payload.Order.LineItems) != 1 || payload.Order.LineItems[0].VariantID != 9001 {
			t.Errorf("unexpected line items %+v", payload.Order.LineItems)
		}
		if payload.Order.LineItems[0].Price != "0.00" {
			t.Errorf("expected zero price, got %q", payload.Order.LineItems[0].Price)
		}
		if payload.Order.FinancialStatus != "paid" {
			t.Errorf("expected financial_status paid, got %q", payload.Order.FinancialStatus)
		}
		if payload.Order.SendReceipt {
			t.Errorf("expected send_receipt false")
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"order": map[string]interface{}{"id": 555001},
		})
	})

	orderID, err := client.CreateZeroCostOrder(context.Background(), ZeroCostOrderInput{
		CustomerID: 7001,
		VariantID:  9001,
		Note:       "QR unlock for code QRTEST",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if orderID != 555001 {
		t.Fatalf("unexpected order id %d", orderID)
	}
}

func TestCreateZeroCostOrderRejected(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":"customer not found"}`))
	})

	_, err := client.CreateZeroCostOrder(context.Background(), ZeroCostOrderInput{
		CustomerID: 1,
		VariantID:  1,
	})
	if !errors.Is(err, ErrOrderCreateRejected) {
		t.Fatalf("expected ErrOrderCreateRejected, got %v", err)
	}
}

func TestNotConfiguredErrors(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.GetProduct(context.Background(), 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := client.GetProducts(context.Background(), []int64{1}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := client.CreateZeroCostOrder(context.Background(), ZeroCostOrderInput{CustomerID: 1, VariantID: 1}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

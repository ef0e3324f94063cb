package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured       = errors.New("shopify not configured")
	ErrRequestFailed       = errors.New("shopify request failed")
	ErrResponseInvalid     = errors.New("shopify response invalid")
	ErrProductNotFound     = errors.New("shopify product not found")
	ErrNoPurchasableUnit   = errors.New("shopify product has no purchasable variant")
	ErrOrderCreateRejected = errors.New("shopify order create rejected")
)

const defaultAPIVersion = "2024-07"
const defaultHTTPTimeout = 10 * time.Second

// Config Shopify Admin API 客户端配置
type Config struct {
	Domain      string // 店铺域名，如 xxx.myshopify.com
	AccessToken string // Admin API 访问令牌
	APIVersion  string // API 版本
	StoreURL    string // 面向用户的店铺地址，用于拼接商品链接
	BaseURL     string // 覆盖 API 基地址；为空时使用 https://{Domain}
}

// Client Shopify Admin REST API 客户端
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建 Shopify 客户端
func NewClient(cfg Config) *Client {
	cfg.Domain = strings.TrimSpace(cfg.Domain)
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	cfg.APIVersion = strings.TrimSpace(cfg.APIVersion)
	cfg.StoreURL = strings.TrimRight(strings.TrimSpace(cfg.StoreURL), "/")
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
}

// Configured 判断凭据是否齐全
func (c *Client) Configured() bool {
	if c == nil || c.cfg.AccessToken == "" {
		return false
	}
	return c.cfg.Domain != "" || c.cfg.BaseURL != ""
}

// Image 商品图片
type Image struct {
	Src string `json:"src"`
}

// Variant 商品变体
type Variant struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
}

// Product 商品元数据
type Product struct {
	ID             int64     `json:"id"`
	Handle         string    `json:"handle"`
	Title          string    `json:"title"`
	Image          *Image    `json:"image"`
	Images         []Image   `json:"images"`
	OnlineStoreURL string    `json:"online_store_url"`
	Variants       []Variant `json:"variants"`
}

// ImageSrc 返回首选图片地址
func (p *Product) ImageSrc() string {
	if p == nil {
		return ""
	}
	if p.Image != nil && p.Image.Src != "" {
		return p.Image.Src
	}
	if len(p.Images) > 0 {
		return p.Images[0].Src
	}
	return ""
}

// StoreURL 返回面向用户的商品链接
func (p *Product) StoreURL(storeBase string) string {
	if p == nil {
		return ""
	}
	if p.OnlineStoreURL != "" {
		return p.OnlineStoreURL
	}
	if p.Handle != "" && storeBase != "" {
		return fmt.Sprintf("%s/products/%s", strings.TrimRight(storeBase, "/"), p.Handle)
	}
	return ""
}

// FirstVariant 返回首个可售变体
func (p *Product) FirstVariant() (*Variant, bool) {
	if p == nil || len(p.Variants) == 0 {
		return nil, false
	}
	return &p.Variants[0], true
}

// GetProduct 按 ID 获取商品元数据
func (c *Client) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if productID <= 0 {
		return nil, ErrProductNotFound
	}

	endpoint := c.adminURL(fmt.Sprintf("products/%d.json", productID))
	body, status, err := c.doGet(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrProductNotFound
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: status %d body %s", ErrRequestFailed, status, truncate(body, 256))
	}

	var payload struct {
		Product *Product `json:"product"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if payload.Product == nil {
		return nil, ErrProductNotFound
	}
	return payload.Product, nil
}

// GetProducts 批量获取商品元数据
func (c *Client) GetProducts(ctx context.Context, productIDs []int64) ([]Product, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if len(productIDs) == 0 {
		return []Product{}, nil
	}

	parts := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if id > 0 {
			parts = append(parts, strconv.FormatInt(id, 10))
		}
	}
	if len(parts) == 0 {
		return []Product{}, nil
	}

	endpoint := c.adminURL("products.json") + "?ids=" + url.QueryEscape(strings.Join(parts, ","))
	body, status, err := c.doGet(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: status %d body %s", ErrRequestFailed, status, truncate(body, 256))
	}

	var payload struct {
		Products []Product `json:"products"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if payload.Products == nil {
		return []Product{}, nil
	}
	return payload.Products, nil
}

// ZeroCostOrderInput 零元订单输入
type ZeroCostOrderInput struct {
	CustomerID int64  // Shopify 客户ID
	VariantID  int64  // 商品变体ID
	Note       string // 订单备注（溯源用，带兑换码）
}

// CreateZeroCostOrder 创建零元订单为客户开通商品访问权
func (c *Client) CreateZeroCostOrder(ctx context.Context, input ZeroCostOrderInput) (int64, error) {
	if !c.Configured() {
		return 0, ErrNotConfigured
	}
	if input.CustomerID <= 0 || input.VariantID <= 0 {
		return 0, fmt.Errorf("%w: missing customer or variant", ErrOrderCreateRejected)
	}

	reqBody := map[string]interface{}{
		"order": map[string]interface{}{
			"customer": map[string]interface{}{
				"id": input.CustomerID,
			},
			"line_items": []map[string]interface{}{
				{
					"variant_id": input.VariantID,
					"quantity":   1,
					"price":      decimal.Zero.StringFixed(2),
				},
			},
			"financial_status": "paid",
			"note":             input.Note,
			"tags":             "qr-unlock",
			"send_receipt":     false,
		},
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.adminURL("orders.json"), bytes.NewReader(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: status %d body %s", ErrOrderCreateRejected, resp.StatusCode, truncate(body, 256))
	}

	var payload struct {
		Order struct {
			ID int64 `json:"id"`
		} `json:"order"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if payload.Order.ID == 0 {
		return 0, ErrResponseInvalid
	}
	return payload.Order.ID, nil
}

func (c *Client) adminURL(path string) string {
	base := c.cfg.BaseURL
	if base == "" {
		base = "https://" + c.cfg.Domain
	}
	return fmt.Sprintf("%s/admin/api/%s/%s", base, c.cfg.APIVersion, path)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-Shopify-Access-Token", c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) doGet(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return body, resp.StatusCode, nil
}

func truncate(body []byte, limit int) string {
	text := string(body)
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

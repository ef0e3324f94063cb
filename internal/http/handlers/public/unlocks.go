package public

import (
	"errors"
	"net/http"
	"strings"

	"github.com/devs-store/unlock-api/internal/logger"
	"github.com/devs-store/unlock-api/internal/service"

	"github.com/gin-gonic/gin"
)

// ListUnlocks 查询客户已解锁的商品列表。
// 响应是裸 JSON 数组，错误时为 {"error": "..."}，与店铺前端既有约定保持一致。
func (h *Handler) ListUnlocks(c *gin.Context) {
	customerID := strings.TrimSpace(c.Query("customerId"))

	items, err := h.EntitlementService.ListEntitlements(c.Request.Context(), customerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCustomerIDRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing customerId"})
		case errors.Is(err, service.ErrShopifyNotConfigured):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Shopify not configured"})
		case errors.Is(err, service.ErrUpstreamUnavailable):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products from Shopify"})
		case errors.Is(err, service.ErrEntitlementStorage):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scans"})
		default:
			logger.Errorw("unlocks_handler_failed", "customer_id", customerID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
		}
		return
	}

	c.JSON(http.StatusOK, items)
}

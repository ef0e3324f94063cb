package queue

import (
	"encoding/json"
	"fmt"

	"github.com/devs-store/unlock-api/internal/constants"

	"github.com/hibiken/asynq"
)

// 任务类型
const (
	TaskQRUnlock = constants.TaskQRUnlock
)

// QRUnlockPayload 解锁任务载荷
type QRUnlockPayload struct {
	CustomerID string `json:"customer_id"` // Shopify 客户ID
	ProductID  int64  `json:"product_id"`  // 待解锁商品ID
	Code       string `json:"code"`        // 兑换码（溯源用）
}

// NewQRUnlockTask 创建解锁任务
func NewQRUnlockTask(payload QRUnlockPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal unlock payload: %w", err)
	}
	return asynq.NewTask(TaskQRUnlock, raw), nil
}

package worker

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/devs-store/unlock-api/internal/logger"
	"github.com/devs-store/unlock-api/internal/provider"
	"github.com/devs-store/unlock-api/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskQRUnlock, c.handleQRUnlock)
}

// handleQRUnlock 消费解锁任务。解锁是尽力而为的副作用，
// 失败只记日志不重试，所以这里恒返回 nil。
func (c *Consumer) handleQRUnlock(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_qr_unlock_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.QRUnlockPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_qr_unlock_unmarshal_failed", "error", err)
		return nil
	}
	if strings.TrimSpace(payload.CustomerID) == "" || payload.ProductID <= 0 {
		logger.Debugw("worker_qr_unlock_skip_invalid_payload",
			"customer_id", payload.CustomerID,
			"product_id", payload.ProductID,
		)
		return nil
	}
	if c.UnlockService == nil {
		logger.Warnw("worker_qr_unlock_skip_unlock_service_nil", "product_id", payload.ProductID)
		return nil
	}
	c.UnlockService.TriggerUnlock(ctx, payload.CustomerID, payload.ProductID, payload.Code)
	return nil
}

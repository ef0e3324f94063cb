package public

import "github.com/devs-store/unlock-api/internal/provider"

// Handler 公开接口处理器入口
// 说明：该处理器仅用于扫码兑换与前台权益查询，不要求任何认证。
type Handler struct {
	*provider.Container
}

// New 创建公开处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

package constants

// 队列名称
const (
	QueueDefault = "default"
)

// 异步任务类型
const (
	TaskQRUnlock = "qr:unlock"
)

// 兑换结果
const (
	RedeemOutcomeRedeemed    = "redeemed"
	RedeemOutcomeAlreadyUsed = "already_used"
)

// 兑换路径（USED 子原因）
const (
	UsedViaGeneric = "generic"
	UsedViaProduct = "product"
)

// 缓存 key 前缀
const (
	CacheKeyShopifyProduct = "shopify:product"
)

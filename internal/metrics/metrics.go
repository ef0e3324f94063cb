package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanRequestsTotal 扫码请求计数（按结果分类）
	ScanRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qr_scan_requests_total",
		Help: "Total number of QR redemption attempts by outcome",
	}, []string{"outcome"})

	// UnlockAttemptsTotal 解锁调用计数（按结果分类）
	UnlockAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qr_unlock_attempts_total",
		Help: "Total number of Shopify unlock attempts by result",
	}, []string{"result"})

	// EntitlementQueriesTotal 权益查询计数（按结果分类）
	EntitlementQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qr_entitlement_queries_total",
		Help: "Total number of entitlement list queries by result",
	}, []string{"result"})
)

// 扫码结果标签
const (
	ScanOutcomeRedeemed     = "redeemed"
	ScanOutcomeAlreadyUsed  = "already_used"
	ScanOutcomeNotFound     = "not_found"
	ScanOutcomeInvalid      = "invalid_request"
	ScanOutcomeStorageError = "storage_error"
)

// 解锁结果标签
const (
	UnlockResultSuccess = "success"
	UnlockResultSkipped = "skipped"
	UnlockResultFailed  = "failed"
)

// 权益查询结果标签
const (
	EntitlementResultOK       = "ok"
	EntitlementResultEmpty    = "empty"
	EntitlementResultUpstream = "upstream_error"
	EntitlementResultStorage  = "storage_error"
)

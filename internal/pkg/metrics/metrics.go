// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 核心路径与同步 Worker 的 Prometheus 指标。
// 通过 bootstrap 暴露在 /metrics。
var (
	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "akwa_reservations_created_total",
		Help: "Number of reservations successfully created.",
	})

	ReservationsDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akwa_reservations_denied_total",
		Help: "Number of reservation attempts denied, by reason.",
	}, []string{"reason"})

	ReservationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "akwa_reservations_expired_total",
		Help: "Number of pending reservations expired by the sweeper.",
	})

	PermissionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "akwa_permission_cache_hits_total",
		Help: "Permission checks answered from cache.",
	})

	PermissionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "akwa_permission_cache_misses_total",
		Help: "Permission checks that fell back to the ledger.",
	})

	PermissionInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "akwa_permission_invalidations_total",
		Help: "Permission cache entries invalidated by ledger events.",
	})

	LedgerSubmits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akwa_ledger_submits_total",
		Help: "Outbound ledger submissions, by result (synced/failed/exhausted).",
	}, []string{"result"})

	SyncBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "akwa_sync_backlog",
		Help: "Unsynced action log entries observed in the last worker pass.",
	})
)

// Package metrics defines and registers all custom Prometheus metrics for the
// upload gateway. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "upload_gateway"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// TokensIssuedTotal counts successfully issued access tokens.
// Label:
//   - scheme: "opaque" or "jwt"
var TokensIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of access tokens issued.",
	},
	[]string{"scheme"},
)

// AuthFailuresTotal counts rejected authentication and authorization attempts.
// Label:
//   - reason: "invalid_credentials", "invalid_client", "unsupported_grant",
//     "unauthorized", "expired", "forbidden"
var AuthFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Total number of rejected authentication or authorization attempts.",
	},
	[]string{"reason"},
)

// SessionsCreatedTotal counts cookie sessions created by POST /auth/session.
var SessionsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Total number of server-side sessions created.",
	},
)

// ── File metrics ──────────────────────────────────────────────────────────────

// FileOperationsTotal counts file operations by outcome.
// Labels:
//   - operation: "upload", "list", "download", "delete"
//   - result: "ok", "not_found", "error"
var FileOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "file_operations_total",
		Help:      "Total number of file operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// UploadSizeBytes observes the size of accepted uploads.
var UploadSizeBytes = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upload_size_bytes",
		Help:      "Size of accepted uploads in bytes.",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB … 256MiB
	},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditQueueDepth tracks the number of audit events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditDroppedTotal counts audit events dropped because a worker buffer was full.
var AuditDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_dropped_total",
		Help:      "Total number of audit events dropped due to a full queue.",
	},
)

// ── Token store metrics ───────────────────────────────────────────────────────

// TokensPurgedTotal counts expired tokens removed by the scheduled sweep.
var TokensPurgedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_purged_total",
		Help:      "Total number of expired tokens removed by the sweep job.",
	},
)

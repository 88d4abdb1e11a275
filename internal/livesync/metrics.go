package livesync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("shopdesk/livesync")

var (
	activeSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "livesync_subscriptions_active",
			Help: "Live subscriptions currently holding a backend listener",
		},
		[]string{"collection"},
	)

	queryFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_query_fallbacks_total",
			Help: "Subscriptions degraded to client-side ordering or filtering",
		},
		[]string{"collection", "stage"},
	)

	subscriptionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_subscription_errors_total",
			Help: "Terminal subscription errors by kind",
		},
		[]string{"collection", "kind"},
	)

	optimisticWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_optimistic_writes_total",
			Help: "Optimistic writes by outcome",
		},
		[]string{"collection", "outcome"},
	)

	notificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_notifications_total",
			Help: "Notification dispatcher decisions",
		},
		[]string{"outcome"},
	)
)

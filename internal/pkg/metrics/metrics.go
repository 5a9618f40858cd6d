package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebhookRequestsTotal counts Stripe webhook requests by event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubsuite",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hubsuite",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubsuite",
		Subsystem: "billing",
		Name:      "reconcile_outcomes_total",
		Help:      "Subscription reconciliations by outcome.",
	}, []string{"outcome"})

	HubChangeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubsuite",
		Subsystem: "billing",
		Name:      "hub_change_rejections_total",
		Help:      "Rejected hub selection changes by reason.",
	}, []string{"reason"})

	// AccessDecisions counts entitlement checks; result is "allowed" or the denial reason.
	AccessDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubsuite",
		Subsystem: "access",
		Name:      "decisions_total",
		Help:      "Entitlement checks by feature and result.",
	}, []string{"feature", "result"})

	RetryJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubsuite",
		Subsystem: "retry",
		Name:      "jobs_total",
		Help:      "Retry queue jobs by final status.",
	}, []string{"status"})
)

// Handler exposes the default registry on a fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

package constants

// Static route constants
const (
	WebhookStripeRoute = "/webhooks/stripe"
	HealthRoute        = "/healthz"
	MetricsRoute       = "/metrics"
	APIRoute           = "/api"
	APIV1Route         = "/v1"
	DocsRoute          = "/docs/api/"
)

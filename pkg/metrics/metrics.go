package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veriauth_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// Verifications counts email verification attempts by channel (link|otp)
	// and result (success|failure).
	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veriauth_verifications_total",
			Help: "Total number of email verification attempts",
		},
		[]string{"channel", "result"},
	)

	// MailDeliveries counts outbound notification attempts by result.
	MailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veriauth_mail_deliveries_total",
			Help: "Total number of outbound email delivery attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "veriauth_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

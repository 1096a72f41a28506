package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "donation_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	otpSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_otp_sends_total",
		Help: "OTP send requests by result.",
	}, []string{"result"})

	otpVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_otp_verifications_total",
		Help: "OTP verification attempts by result.",
	}, []string{"result"})

	passwordLoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_password_logins_total",
		Help: "Email/password login attempts by result.",
	}, []string{"result"})

	receiptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_receipts_total",
		Help: "Payment verifications by result: issued, replayed or rejected.",
	}, []string{"result"})

	receiptEmailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_receipt_emails_total",
		Help: "Receipt emails by result.",
	}, []string{"result"})

	dependencyUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "donation_dependency_up",
		Help: "1 if the last probe of a backing store succeeded, else 0.",
	}, []string{"dependency"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			// Unmatched routes share one label so scanners cannot grow the series set.
			path = "unmatched"
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func recordOTPSend(result string)         { otpSendsTotal.WithLabelValues(result).Inc() }
func recordOTPVerification(result string) { otpVerificationsTotal.WithLabelValues(result).Inc() }
func recordPasswordLogin(result string)   { passwordLoginsTotal.WithLabelValues(result).Inc() }
func recordReceipt(result string)         { receiptsTotal.WithLabelValues(result).Inc() }

func recordReceiptEmail(sent bool) {
	if sent {
		receiptEmailsTotal.WithLabelValues("sent").Inc()
	} else {
		receiptEmailsTotal.WithLabelValues("failed").Inc()
	}
}

// RecordDependencyProbe sets donation_dependency_up for a health probe.
// It matches health.MetricsRecordFunc.
func RecordDependencyProbe(name string, success bool) {
	v := 0.0
	if success {
		v = 1
	}
	dependencyUp.WithLabelValues(name).Set(v)
}

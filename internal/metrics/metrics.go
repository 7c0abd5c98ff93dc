// Package metrics provides Prometheus metrics for the ocsd share server.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocsd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocsd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// HTTP status is 200 for every API outcome, the OCS code tells them apart.
	ocsResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocsd_ocs_responses_total",
			Help: "Total OCS responses by meta status code",
		},
		[]string{"statuscode"},
	)

	// Share metrics
	sharesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocsd_shares_created_total",
			Help: "Total shares created",
		},
		[]string{"type"},
	)

	sharesDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocsd_shares_deleted_total",
			Help: "Total shares deleted through the API",
		},
		[]string{"type"},
	)

	expiredSharesCleanedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ocsd_expired_shares_cleaned_total",
			Help: "Total expired public links removed by the cleaner",
		},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocsd_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordOCSResponse records the meta status code of an API response.
func RecordOCSResponse(statusCode int) {
	ocsResponsesTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordShareCreated records a new share of the given type.
func RecordShareCreated(shareType string) {
	sharesCreatedTotal.WithLabelValues(shareType).Inc()
}

// RecordShareDeleted records a deleted share of the given type.
func RecordShareDeleted(shareType string) {
	sharesDeletedTotal.WithLabelValues(shareType).Inc()
}

// RecordExpiredSharesCleaned adds n to the cleaned-links counter.
func RecordExpiredSharesCleaned(n int64) {
	expiredSharesCleanedTotal.Add(float64(n))
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// Middleware returns HTTP middleware that records request metrics, labelled
// with the matched chi route pattern so share ids do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

// Authenticator is the credential check wrapped by InstrumentAuthenticator.
type Authenticator interface {
	Authenticate(ctx context.Context, login, password string) (bool, error)
}

type instrumentedAuth struct {
	next Authenticator
}

// InstrumentAuthenticator counts the outcome of every Authenticate call.
func InstrumentAuthenticator(a Authenticator) Authenticator {
	return instrumentedAuth{next: a}
}

func (a instrumentedAuth) Authenticate(ctx context.Context, login, password string) (bool, error) {
	ok, err := a.next.Authenticate(ctx, login, password)
	RecordAuthAttempt(ok && err == nil)
	return ok, err
}

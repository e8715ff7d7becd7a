package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"hotel_rates/internal/domain"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rates", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rates", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	Resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rates", Name: "resolutions_total", Help: "Price resolutions."},
		[]string{"outcome"}, // outcome: priced|no_rate|invalid|error
	)
	AuditAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rates", Name: "audit_appends_total", Help: "Audit log appends."},
		[]string{"action"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rates", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"},
	)
)

// Serve starts the standalone metrics listener when addr is non-empty.
func Serve(addr string) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, Resolutions, AuditAppends, CacheEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveResolution(outcome string) {
	Resolutions.WithLabelValues(outcome).Inc()
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

// InstrumentAuditLog counts successful appends per action without the app
// layer importing this package.
func InstrumentAuditLog(inner domain.AuditLog) domain.AuditLog {
	return auditLogMetrics{inner: inner}
}

type auditLogMetrics struct{ inner domain.AuditLog }

func (a auditLogMetrics) AppendAudit(ctx context.Context, e domain.AuditEntry) error {
	err := a.inner.AppendAudit(ctx, e)
	if err == nil {
		AuditAppends.WithLabelValues(string(e.Action)).Inc()
	}
	return err
}

func (a auditLogMetrics) ListAudit(ctx context.Context, rateID string, limit int) ([]domain.AuditEntry, error) {
	return a.inner.ListAudit(ctx, rateID, limit)
}

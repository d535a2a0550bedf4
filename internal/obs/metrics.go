package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "messaging_sessions_active",
		Help: "Sessions currently registered, in any state.",
	})

	sessionsAuthenticated = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "messaging_sessions_authenticated",
		Help: "Sessions that completed the QR handshake.",
	})

	qrIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messaging_qr_codes_issued_total",
		Help: "QR codes stored for pending handshakes.",
	})

	reconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messaging_session_reconnects_total",
		Help: "Scheduled session recreations after a disconnect.",
	})

	authorityRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_cache_refresh_total",
			Help: "Refreshes of the authorization allow-list cache.",
		},
		[]string{"result"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Init registers the collectors with the default registry. Call once from main.
func Init() {
	prometheus.MustRegister(
		sessionsActive,
		sessionsAuthenticated,
		qrIssuedTotal,
		reconnectsTotal,
		authorityRefreshTotal,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

func SessionRegistered()      { sessionsActive.Inc() }
func SessionRemoved()         { sessionsActive.Dec() }
func SessionAuthenticated()   { sessionsAuthenticated.Inc() }
func SessionDeauthenticated() { sessionsAuthenticated.Dec() }
func QRIssued()               { qrIssuedTotal.Inc() }
func ReconnectScheduled()     { reconnectsTotal.Inc() }

func AuthorityRefresh(result string) {
	authorityRefreshTotal.WithLabelValues(result).Inc()
}

// Instrument wraps a handler with request count and latency measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
